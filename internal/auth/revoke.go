package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Revoke logs out. The access token is revoked at the provider as a
// courtesy; local credentials are cleared whatever the network outcome.
// Always returns true.
func (f *Flow) Revoke(ctx context.Context) bool {
	creds := f.tokens.Credentials()

	if creds.AccessToken != "" && f.cfg.RevokeURL != "" {
		if err := f.postRevoke(ctx, creds.ClientID, creds.ClientSecret, creds.AccessToken); err != nil {
			f.logger.Warn("token revocation failed; clearing local credentials anyway", "error", err)
		}
	}

	f.mu.Lock()
	f.pending = nil
	f.mu.Unlock()

	if err := f.tokens.Clear(ctx); err != nil {
		f.logger.Error("failed to clear credentials", "error", err)
	}
	f.logger.Info("logged out")
	return true
}

func (f *Flow) postRevoke(ctx context.Context, clientID, clientSecret, token string) error {
	if f.throttle != nil {
		if err := f.throttle.Wait(ctx, throttleKey); err != nil {
			return err
		}
	}

	form := url.Values{
		"token":           {token},
		"token_type_hint": {"access_token"},
		"client_id":       {clientID},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if clientSecret != "" {
		req.SetBasicAuth(url.QueryEscape(clientID), url.QueryEscape(clientSecret))
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("revoke endpoint returned %d", resp.StatusCode)
	}
	return nil
}
