package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/vaultmark/vaultmark/internal/domain"
	"github.com/vaultmark/vaultmark/internal/settings"
)

// KeyringService is the OS keychain service name tokens are stored under.
const KeyringService = "vaultmark"

// SettingsBackend keeps credentials inside the settings blob.
type SettingsBackend struct {
	state *settings.State
}

// NewSettingsBackend creates a backend over the shared settings state.
func NewSettingsBackend(state *settings.State) *SettingsBackend {
	return &SettingsBackend{state: state}
}

// Load implements Backend.
func (b *SettingsBackend) Load(context.Context) (domain.Credentials, error) {
	return b.state.Snapshot().Credentials, nil
}

// Save implements Backend.
func (b *SettingsBackend) Save(ctx context.Context, c domain.Credentials) error {
	return b.state.Update(ctx, func(s *domain.Settings) {
		s.Credentials = c
	})
}

// keyringTokens is the JSON document stored in the keychain.
type keyringTokens struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenExpiry  time.Time `json:"token_expiry,omitzero"`
}

// KeyringBackend stores tokens in the OS keychain. The client registration
// stays in the settings blob; token fields there are always blank.
type KeyringBackend struct {
	state *settings.State
	user  string
}

// NewKeyringBackend creates a keychain backend. user distinguishes
// registrations, normally the client ID.
func NewKeyringBackend(state *settings.State, user string) *KeyringBackend {
	if user == "" {
		user = "default"
	}
	return &KeyringBackend{state: state, user: user}
}

// Load implements Backend.
func (b *KeyringBackend) Load(context.Context) (domain.Credentials, error) {
	creds := b.state.Snapshot().Credentials

	raw, err := keyring.Get(KeyringService, b.user)
	if errors.Is(err, keyring.ErrNotFound) {
		creds.AccessToken, creds.RefreshToken, creds.TokenExpiry = "", "", time.Time{}
		return creds, nil
	}
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("read keychain: %w", err)
	}

	var tokens keyringTokens
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return domain.Credentials{}, fmt.Errorf("decode keychain entry: %w", err)
	}
	creds.AccessToken = tokens.AccessToken
	creds.RefreshToken = tokens.RefreshToken
	creds.TokenExpiry = tokens.TokenExpiry
	return creds, nil
}

// Save implements Backend.
func (b *KeyringBackend) Save(ctx context.Context, c domain.Credentials) error {
	if c.AccessToken == "" && c.RefreshToken == "" {
		if err := keyring.Delete(KeyringService, b.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("clear keychain: %w", err)
		}
	} else {
		data, err := json.Marshal(keyringTokens{
			AccessToken:  c.AccessToken,
			RefreshToken: c.RefreshToken,
			TokenExpiry:  c.TokenExpiry,
		})
		if err != nil {
			return fmt.Errorf("encode keychain entry: %w", err)
		}
		if err := keyring.Set(KeyringService, b.user, string(data)); err != nil {
			return fmt.Errorf("write keychain: %w", err)
		}
	}

	blob := c
	blob.AccessToken, blob.RefreshToken, blob.TokenExpiry = "", "", time.Time{}
	return b.state.Update(ctx, func(s *domain.Settings) {
		s.Credentials = blob
	})
}
