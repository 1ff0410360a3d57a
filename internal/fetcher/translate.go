package fetcher

import (
	"context"

	"github.com/vaultmark/vaultmark/internal/domain"
	"github.com/vaultmark/vaultmark/internal/errors"
	"github.com/vaultmark/vaultmark/internal/xapi"
)

// translate maps a provider client failure onto the domain taxonomy.
func (f *Fetcher) translate(ctx context.Context, err error, resumed bool) error {
	var apiErr *xapi.Error
	detail := map[string]any{}
	if errors.As(err, &apiErr) {
		detail["op"] = apiErr.Op
		detail["status"] = apiErr.Status
		if apiErr.Detail != "" {
			detail["detail"] = apiErr.Detail
		}
	}

	switch {
	case errors.Is(err, xapi.ErrUnauthorized):
		return f.refreshAfterReject(ctx, err)

	case errors.Is(err, xapi.ErrRateLimited):
		wait := f.gate.Window()
		if apiErr != nil && apiErr.RetryAfter > 0 {
			wait = apiErr.RetryAfter
		}
		f.logger.Warn("provider rate limit hit", "retry_after", wait)
		return errors.RateLimited("The provider rate limit was reached", wait).WithDetails(detail).WithCause(err)

	case errors.Is(err, xapi.ErrTimeout):
		return errors.Wrap(err, errors.CodeTimeout, "Provider request timed out").WithDetails(detail)

	case errors.Is(err, xapi.ErrNetwork), errors.Is(err, xapi.ErrServer):
		return errors.Wrap(err, errors.CodeNetwork, "Could not reach the provider").WithDetails(detail)

	case errors.Is(err, xapi.ErrBadRequest) && resumed:
		// The saved token went stale; the next attempt starts the pass over.
		f.logger.Warn("pagination token rejected; restarting pass", "error", err)
		if resetErr := f.state.Update(ctx, func(s *domain.Settings) {
			s.Cursor.NextToken = ""
		}); resetErr != nil {
			f.logger.Error("failed to drop stale pagination token", "error", resetErr)
		}
		return errors.Wrap(err, errors.CodeInternal, "The provider rejected the saved pagination token").WithDetails(detail)

	default:
		return errors.Wrap(err, errors.CodeInternal, "The provider returned an unexpected response").WithDetails(detail)
	}
}

// refreshAfterReject runs the single refresh allowed per fetch.
func (f *Fetcher) refreshAfterReject(ctx context.Context, cause error) error {
	f.logger.Info("access token rejected; refreshing")

	if err := f.refresher.RefreshToken(ctx, 0); err != nil {
		f.logger.Warn("token refresh failed", "error", err)
		if errors.CodeOf(err) == errors.CodeInternal {
			return errors.Wrap(err, errors.CodeAuth, "Could not refresh the session")
		}
		return err
	}
	return errors.ResyncRequired("Session refreshed, sync again to continue").WithCause(cause)
}
