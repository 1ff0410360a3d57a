package auth

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/vaultmark/vaultmark/internal/errors"
)

// MaxRefreshRetries bounds caller-initiated refresh retries.
const MaxRefreshRetries = 1

// Backoff is the wait before refresh retry number attempt: 2^attempt seconds.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return time.Duration(1<<attempt) * time.Second
}

// RefreshToken exchanges the refresh token for a new access token.
//
// attempt is zero for a first try. A caller that retries passes the retry
// number; the call then waits Backoff(attempt) first, and attempts beyond
// MaxRefreshRetries fail without a request. A 429 is returned as a
// RATE_LIMITED error carrying the provider's wait and is never retried here.
// Concurrent calls share one request.
func (f *Flow) RefreshToken(ctx context.Context, attempt int) error {
	if attempt > MaxRefreshRetries {
		return errors.Auth("Token refresh retries exhausted")
	}

	creds := f.tokens.Credentials()
	if creds.ClientID == "" {
		return errors.Config("Client ID is not configured")
	}
	if creds.RefreshToken == "" {
		return errors.Auth("No refresh token available")
	}

	if attempt > 0 {
		wait := Backoff(attempt)
		f.logger.Info("waiting before token refresh retry", "attempt", attempt, "wait", wait)
		if err := f.sleep(ctx, wait); err != nil {
			return errors.Transport(err, "Token refresh")
		}
	}

	_, err, shared := f.refreshGroup.Do("refresh", func() (any, error) {
		return nil, f.refresh(ctx)
	})
	if shared {
		f.logger.Debug("token refresh shared with concurrent caller")
	}
	return err
}

func (f *Flow) refresh(ctx context.Context) error {
	creds := f.tokens.Credentials()

	tctx, err := f.tokenContext(ctx)
	if err != nil {
		return err
	}

	// An empty access token forces the source to refresh.
	src := f.oauthConfig(creds, "").TokenSource(tctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		mapped := f.tokenError(err, "Token refresh")
		if isInvalidGrant(err) {
			f.logger.Warn("refresh token rejected; clearing credentials")
			if clearErr := f.tokens.Clear(ctx); clearErr != nil {
				f.logger.Warn("failed to clear credentials", "error", clearErr)
			}
			return errors.Auth("Session expired").WithCause(mapped)
		}
		return mapped
	}

	if err := f.tokens.SetTokens(ctx, tok.AccessToken, tok.RefreshToken, tok.Expiry); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "could not save tokens")
	}

	f.logger.Info("access token refreshed", "rotated_refresh_token", tok.RefreshToken != "" && tok.RefreshToken != creds.RefreshToken)
	return nil
}

func isInvalidGrant(err error) bool {
	var rErr *oauth2.RetrieveError
	return errors.As(err, &rErr) && rErr.ErrorCode == "invalid_grant"
}
