package store

import (
	"context"
	"fmt"
	"time"

	"github.com/vaultmark/vaultmark/internal/domain"
)

// GetSettings loads the settings blob. Returns ErrNotFound on first run.
func (s *Store) GetSettings(ctx context.Context) (*domain.Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var settings domain.Settings
	if err := s.get([]byte(keySettings), &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// SaveSettings writes the whole settings blob in one transaction.
func (s *Store) SaveSettings(ctx context.Context, settings *domain.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	settings.UpdatedAt = time.Now()
	if err := s.set([]byte(keySettings), settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// DeleteSettings removes the settings blob.
func (s *Store) DeleteSettings(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.delete([]byte(keySettings))
}
