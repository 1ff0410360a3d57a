// Package auth implements the OAuth 2.0 authorization code flow with PKCE
// against the provider, plus token refresh and revocation.
package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/vaultmark/vaultmark/internal/domain"
	"github.com/vaultmark/vaultmark/internal/errors"
	"github.com/vaultmark/vaultmark/internal/id"
	"github.com/vaultmark/vaultmark/internal/ratelimit"
)

// throttleKey spaces calls to the token and revoke endpoints.
const throttleKey = "oauth"

// TokenStore is the credential storage the flow reads and writes.
type TokenStore interface {
	Credentials() domain.Credentials
	SetTokens(ctx context.Context, accessToken, refreshToken string, expiry time.Time) error
	SetCodeVerifier(ctx context.Context, verifier string) error
	ClearCodeVerifier(ctx context.Context) error
	Clear(ctx context.Context) error
}

// Config holds the provider endpoints and the registered redirect URI.
type Config struct {
	AuthorizeURL   string
	TokenURL       string
	RevokeURL      string
	RedirectURI    string
	Scopes         []string
	RequestTimeout time.Duration
}

// AuthRequest is the result of beginning an authorization.
type AuthRequest struct {
	AuthorizationURL string
	CodeVerifier     string
	State            string
}

// Status describes the authorization state for the control API.
type Status struct {
	ClientConfigured bool      `json:"client_configured"`
	Authenticated    bool      `json:"authenticated"`
	Pending          bool      `json:"pending"`
	PendingSince     time.Time `json:"pending_since,omitzero"`
	TokenExpiry      time.Time `json:"token_expiry,omitzero"`
}

// Flow runs authorization attempts and token maintenance.
type Flow struct {
	cfg      Config
	tokens   TokenStore
	http     *http.Client
	throttle *ratelimit.Throttle
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	refreshGroup singleflight.Group

	mu      sync.Mutex
	pending *domain.AuthSession
}

// Option configures a Flow.
type Option func(*Flow)

// WithHTTPClient overrides the HTTP client used for token calls.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Flow) { f.http = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) { f.now = now }
}

// WithThrottle spaces token endpoint calls through t.
func WithThrottle(t *ratelimit.Throttle) Option {
	return func(f *Flow) { f.throttle = t }
}

// New creates an authorization flow.
func New(cfg Config, tokens TokenStore, logger *slog.Logger, opts ...Option) *Flow {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	f := &Flow{
		cfg:    cfg,
		tokens: tokens,
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) oauthConfig(creds domain.Credentials, redirectURI string) *oauth2.Config {
	if redirectURI == "" {
		redirectURI = f.cfg.RedirectURI
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       f.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   f.cfg.AuthorizeURL,
			TokenURL:  f.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// tokenContext routes x/oauth2 through our client and throttle.
func (f *Flow) tokenContext(ctx context.Context) (context.Context, error) {
	if f.throttle != nil {
		if err := f.throttle.Wait(ctx, throttleKey); err != nil {
			return nil, errors.Transport(err, "token request")
		}
	}
	return context.WithValue(ctx, oauth2.HTTPClient, f.http), nil
}

// BeginAuth builds an authorization URL with a fresh verifier and state.
// It has no side effects; see Begin for the stateful variant.
func (f *Flow) BeginAuth() (AuthRequest, error) {
	creds := f.tokens.Credentials()
	if creds.ClientID == "" {
		return AuthRequest{}, errors.Config("Client ID is not configured")
	}

	verifier, err := NewVerifier()
	if err != nil {
		return AuthRequest{}, errors.Wrap(err, errors.CodeInternal, "could not generate code verifier")
	}
	state, err := id.Nonce()
	if err != nil {
		return AuthRequest{}, errors.Wrap(err, errors.CodeInternal, "could not generate state")
	}

	authURL := f.oauthConfig(creds, "").AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	return AuthRequest{
		AuthorizationURL: authURL,
		CodeVerifier:     verifier,
		State:            state,
	}, nil
}

// Begin starts an authorization attempt and keeps it as the single pending
// session, replacing any earlier one.
func (f *Flow) Begin(ctx context.Context) (AuthRequest, error) {
	req, err := f.BeginAuth()
	if err != nil {
		return AuthRequest{}, err
	}

	if err := f.tokens.SetCodeVerifier(ctx, req.CodeVerifier); err != nil {
		return AuthRequest{}, errors.Wrap(err, errors.CodeInternal, "could not save code verifier")
	}

	f.mu.Lock()
	f.pending = &domain.AuthSession{
		State:        req.State,
		CodeVerifier: req.CodeVerifier,
		CreatedAt:    f.now(),
	}
	f.mu.Unlock()

	f.logger.Info("authorization started")
	return req, nil
}

// takeSession consumes the pending session.
func (f *Flow) takeSession() *domain.AuthSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.pending
	f.pending = nil
	return s
}

// Complete finishes the pending authorization with the redirect the
// provider sent back. The pending session is consumed first, so a
// callback can never be replayed.
func (f *Flow) Complete(ctx context.Context, callbackURI string) error {
	params := ParseCallback(callbackURI)
	session := f.takeSession()

	abort := func(err error) error {
		if clearErr := f.tokens.ClearCodeVerifier(ctx); clearErr != nil {
			f.logger.Warn("failed to clear code verifier", "error", clearErr)
		}
		return err
	}

	if session == nil || session.Expired(f.now()) {
		f.logger.Warn("callback without a pending authorization ignored")
		return abort(errors.StateMismatch("No authorization is pending"))
	}

	// State is checked first so a forged error callback is reported as such.
	if subtle.ConstantTimeCompare([]byte(params.State), []byte(session.State)) != 1 {
		f.logger.Warn("authorization state mismatch")
		return abort(errors.StateMismatch("Authorization state did not match"))
	}

	if params.Error != "" {
		f.logger.Warn("authorization denied by provider",
			"error", params.Error,
			"error_description", params.ErrorDescription,
		)
		return abort(errors.Auth("Authorization was denied").WithDetails(map[string]string{
			"error":             params.Error,
			"error_description": params.ErrorDescription,
		}))
	}

	if params.Code == "" {
		return abort(errors.Auth("Authorization response carried no code"))
	}

	return f.ExchangeCode(ctx, params.Code, session.CodeVerifier, "")
}

// ExchangeCode trades an authorization code for tokens. The verifier is
// cleared whether the exchange succeeds or fails. Never retried.
func (f *Flow) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) error {
	creds := f.tokens.Credentials()
	if creds.ClientID == "" {
		return errors.Config("Client ID is not configured")
	}
	if codeVerifier == "" {
		return errors.Config("Code verifier is missing; start authorization again")
	}

	defer func() {
		if err := f.tokens.ClearCodeVerifier(ctx); err != nil {
			f.logger.Warn("failed to clear code verifier", "error", err)
		}
	}()

	tctx, err := f.tokenContext(ctx)
	if err != nil {
		return err
	}

	tok, err := f.oauthConfig(creds, redirectURI).Exchange(tctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return f.tokenError(err, "Token exchange")
	}

	if err := f.tokens.SetTokens(ctx, tok.AccessToken, tok.RefreshToken, tok.Expiry); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "could not save tokens")
	}

	f.logger.Info("authorization completed", "has_refresh_token", tok.RefreshToken != "")
	return nil
}

// Status reports the authorization state.
func (f *Flow) Status() Status {
	creds := f.tokens.Credentials()
	st := Status{
		ClientConfigured: creds.ClientID != "",
		Authenticated:    creds.Authenticated(),
		TokenExpiry:      creds.TokenExpiry,
	}

	f.mu.Lock()
	if f.pending != nil && !f.pending.Expired(f.now()) {
		st.Pending = true
		st.PendingSince = f.pending.CreatedAt
	}
	f.mu.Unlock()

	return st
}

// tokenError maps an x/oauth2 failure onto the error taxonomy.
func (f *Flow) tokenError(err error, op string) error {
	var rErr *oauth2.RetrieveError
	if !errors.As(err, &rErr) {
		if isTransport(err) {
			return errors.Transport(err, op)
		}
		return errors.TokenExchange(op+" failed", map[string]string{"detail": err.Error()})
	}

	status := 0
	if rErr.Response != nil {
		status = rErr.Response.StatusCode
	}
	payload := map[string]any{
		"status":            status,
		"error":             rErr.ErrorCode,
		"error_description": rErr.ErrorDescription,
	}
	f.logger.Warn("token endpoint rejected request",
		"op", op,
		"status", status,
		"error", rErr.ErrorCode,
		"error_description", rErr.ErrorDescription,
	)

	if status == http.StatusTooManyRequests {
		wait, ok := f.retryAfter(rErr)
		if !ok {
			wait = Backoff(0)
		}
		return errors.RateLimited(op+" is rate limited", wait).WithDetails(payload)
	}
	return errors.TokenExchange(op+" failed", payload)
}

func (f *Flow) retryAfter(rErr *oauth2.RetrieveError) (time.Duration, bool) {
	var h http.Header
	if rErr.Response != nil {
		h = rErr.Response.Header
	}
	body := rErr.ErrorDescription + " " + string(rErr.Body)
	return ratelimit.ParseRetryAfter(h, body, f.now())
}

func isTransport(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
