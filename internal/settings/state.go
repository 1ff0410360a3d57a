// Package settings holds the in-memory settings blob shared by the sync
// components and persists it after every mutation.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vaultmark/vaultmark/internal/domain"
	domainerrors "github.com/vaultmark/vaultmark/internal/errors"
)

// Persister saves the whole settings blob.
type Persister interface {
	SaveSettings(ctx context.Context, s *domain.Settings) error
}

// Repository loads and saves the settings blob.
type Repository interface {
	Persister
	GetSettings(ctx context.Context) (*domain.Settings, error)
}

// State is the authoritative in-memory copy of the settings blob.
type State struct {
	mu        sync.Mutex
	current   domain.Settings
	persister Persister
}

// New wraps an already loaded blob.
func New(initial *domain.Settings, p Persister) *State {
	s := &State{persister: p}
	if initial != nil {
		s.current = *initial
	}
	return s
}

// Load reads the blob from repo. On first run it saves seed instead.
func Load(ctx context.Context, repo Repository, seed *domain.Settings) (*State, error) {
	loaded, err := repo.GetSettings(ctx)
	switch {
	case err == nil:
		return New(loaded, repo), nil
	case errors.Is(err, domainerrors.ErrNotFound):
		if err := repo.SaveSettings(ctx, seed); err != nil {
			return nil, fmt.Errorf("seed settings: %w", err)
		}
		return New(seed, repo), nil
	default:
		return nil, fmt.Errorf("load settings: %w", err)
	}
}

// Snapshot returns a copy of the current blob.
func (s *State) Snapshot() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update applies fn and persists the result. Saves are sequenced: the
// lock is held until the persister returns. A failed save leaves the
// mutation in memory and returns the error.
func (s *State) Update(ctx context.Context, fn func(*domain.Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.current)

	if s.persister == nil {
		return nil
	}
	snapshot := s.current
	if err := s.persister.SaveSettings(ctx, &snapshot); err != nil {
		return fmt.Errorf("persist settings: %w", err)
	}
	return nil
}

// Preferences returns the current note formatting preferences.
func (s *State) Preferences() domain.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Preferences
}
