package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/vaultmark/vaultmark/internal/errors"
	"github.com/vaultmark/vaultmark/internal/ratelimit"
)

// RateLimitMiddleware limits requests per client address. Returns 429 Too
// Many Requests when the limit is exceeded.
func RateLimitMiddleware(limiter *ratelimit.Throttle, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)

			if !limiter.Allow(key) {
				logger.Warn("rate limit exceeded",
					"ip", key,
					"path", r.URL.Path,
				)
				writeEnvelopeError(w, &APIError{
					status:  http.StatusTooManyRequests,
					Code:    string(errors.CodeRateLimited),
					Message: "Too many requests. Please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr. RealIP has already applied
// forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeEnvelopeError(w http.ResponseWriter, apiErr *APIError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(apiErr.status)
	_ = json.NewEncoder(w).Encode(Envelope{Version: EnvelopeVersion, Error: apiErr})
}
