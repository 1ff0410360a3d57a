// Package tokenstore holds the OAuth client credentials and the tokens
// issued to them. Every mutation is persisted through a Backend before the
// call returns.
package tokenstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vaultmark/vaultmark/internal/domain"
)

// Backend persists credentials.
type Backend interface {
	Load(ctx context.Context) (domain.Credentials, error)
	Save(ctx context.Context, c domain.Credentials) error
}

// Store is the token store.
type Store struct {
	mu      sync.RWMutex
	creds   domain.Credentials
	backend Backend
	logger  *slog.Logger
}

// New loads credentials from backend.
func New(ctx context.Context, backend Backend, logger *slog.Logger) (*Store, error) {
	creds, err := backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &Store{creds: creds, backend: backend, logger: logger}, nil
}

// Credentials returns a copy of the current credentials.
func (s *Store) Credentials() domain.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// SetClient sets the OAuth client registration. Changing the client ID
// drops tokens issued to the previous client.
func (s *Store) SetClient(ctx context.Context, clientID, clientSecret string) error {
	return s.mutate(ctx, func(c *domain.Credentials) {
		if c.ClientID != clientID {
			c.ClearTokens()
		}
		c.ClientID = clientID
		c.ClientSecret = clientSecret
	})
}

// SetTokens stores a token grant and clears the pending verifier. An empty
// refresh token keeps the previous one.
func (s *Store) SetTokens(ctx context.Context, accessToken, refreshToken string, expiry time.Time) error {
	return s.mutate(ctx, func(c *domain.Credentials) {
		c.AccessToken = accessToken
		if refreshToken != "" {
			c.RefreshToken = refreshToken
		}
		c.TokenExpiry = expiry
		c.CodeVerifier = ""
	})
}

// SetCodeVerifier records the verifier of the pending authorization attempt.
func (s *Store) SetCodeVerifier(ctx context.Context, verifier string) error {
	return s.mutate(ctx, func(c *domain.Credentials) {
		c.CodeVerifier = verifier
	})
}

// ClearCodeVerifier drops the pending verifier.
func (s *Store) ClearCodeVerifier(ctx context.Context) error {
	return s.mutate(ctx, func(c *domain.Credentials) {
		c.CodeVerifier = ""
	})
}

// Clear drops all tokens, keeping the client registration.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func(c *domain.Credentials) {
		c.ClearTokens()
	})
}

func (s *Store) mutate(ctx context.Context, fn func(*domain.Credentials)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.creds)
	if err := s.backend.Save(ctx, s.creds); err != nil {
		if s.logger != nil {
			s.logger.Error("failed to persist credentials", "error", err)
		}
		return err
	}
	return nil
}
