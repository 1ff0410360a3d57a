package ratelimit

import (
	"net/http"
	"regexp"
	"strconv"
	"time"
)

var waitMinutesPattern = regexp.MustCompile(`(?i)wait (\d+) minutes?`)

// ParseRetryAfter extracts the wait a provider asked for. It checks, in
// order, the Retry-After header (seconds or HTTP date), the epoch in
// x-rate-limit-reset, and a "wait N minutes" phrase in the error body.
func ParseRetryAfter(h http.Header, body string, now time.Time) (time.Duration, bool) {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second, true
		}
		if at, err := http.ParseTime(v); err == nil {
			return clampWait(at.Sub(now)), true
		}
	}

	if v := h.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			return clampWait(time.Unix(epoch, 0).Sub(now)), true
		}
	}

	if m := waitMinutesPattern.FindStringSubmatch(body); m != nil {
		if mins, err := strconv.Atoi(m[1]); err == nil {
			return time.Duration(mins) * time.Minute, true
		}
	}

	return 0, false
}

func clampWait(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
