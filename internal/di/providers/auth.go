package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/vaultmark/vaultmark/internal/auth"
	"github.com/vaultmark/vaultmark/internal/config"
	"github.com/vaultmark/vaultmark/internal/domain"
	"github.com/vaultmark/vaultmark/internal/logger"
	"github.com/vaultmark/vaultmark/internal/ratelimit"
	"github.com/vaultmark/vaultmark/internal/settings"
	"github.com/vaultmark/vaultmark/internal/tokenstore"
)

// Token endpoint spacing. Refreshes and exchanges are rare; this only
// guards against a misbehaving client hammering the provider.
const (
	oauthRPS   = 0.5
	oauthBurst = 2
)

// ProvideTokenStore provides credential storage on the configured backend
// and applies the client registration from the configuration.
func ProvideTokenStore(i do.Injector) (*tokenstore.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	state := do.MustInvoke[*settings.State](i)

	var backend tokenstore.Backend
	switch cfg.Secrets.Backend {
	case config.SecretsKeyring:
		backend = tokenstore.NewKeyringBackend(state, cfg.Provider.ClientID)
	default:
		backend = tokenstore.NewSettingsBackend(state)
	}

	ctx := context.Background()
	tokens, err := tokenstore.New(ctx, backend, log.Component("tokens"))
	if err != nil {
		return nil, err
	}

	if cfg.Provider.ClientID != "" {
		if err := tokens.SetClient(ctx, cfg.Provider.ClientID, cfg.Provider.ClientSecret); err != nil {
			return nil, err
		}
	} else {
		log.Warn("No client ID configured - authorization will fail until X_CLIENT_ID is set")
	}

	log.Info("Token store ready",
		"backend", cfg.Secrets.Backend,
		"authenticated", tokens.Credentials().Authenticated(),
	)

	return tokens, nil
}

// ProvideRateGate provides the bookmark rate gate restored from settings.
// The configured window wins over a persisted one.
func ProvideRateGate(i do.Injector) (*ratelimit.Gate, error) {
	cfg := do.MustInvoke[*config.Config](i)
	state := do.MustInvoke[*settings.State](i)

	err := state.Update(context.Background(), func(s *domain.Settings) {
		s.Rate.RateWindow = cfg.Sync.RateWindow
		if cfg.Sync.Bypass {
			s.Rate.BypassEnabled = true
		}
	})
	if err != nil {
		return nil, err
	}

	return ratelimit.NewGate(state.Snapshot().Rate), nil
}

// AuthFlowHandle wraps the authorization flow with its token endpoint throttle.
type AuthFlowHandle struct {
	*auth.Flow
	throttle *ratelimit.Throttle
}

// Shutdown implements do.Shutdownable.
func (h *AuthFlowHandle) Shutdown() error {
	h.throttle.Stop()
	return nil
}

// ProvideAuthFlow provides the OAuth 2.0 PKCE authorization flow.
func ProvideAuthFlow(i do.Injector) (*AuthFlowHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	tokens := do.MustInvoke[*tokenstore.Store](i)

	throttle := ratelimit.NewThrottle(oauthRPS, oauthBurst, 10*time.Minute)

	flow := auth.New(auth.Config{
		AuthorizeURL:   cfg.Provider.AuthorizeURL,
		TokenURL:       cfg.Provider.TokenURL,
		RevokeURL:      cfg.Provider.RevokeURL,
		RedirectURI:    cfg.Provider.RedirectURI,
		Scopes:         cfg.Provider.Scopes,
		RequestTimeout: cfg.Sync.RequestTimeout,
	}, tokens, log.Component("auth"), auth.WithThrottle(throttle))

	return &AuthFlowHandle{Flow: flow, throttle: throttle}, nil
}
