package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle is a keyed token-bucket limiter. The provider client uses it to
// space outbound calls per endpoint; the control API uses it per client
// address.
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*throttleEntry
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewThrottle creates a keyed limiter.
// rps: requests per second allowed.
// burst: maximum burst size (tokens available immediately).
// Keys idle for longer than idleTTL are evicted; zero disables eviction.
func NewThrottle(rps float64, burst int, idleTTL time.Duration) *Throttle {
	t := &Throttle{
		limiters: make(map[string]*throttleEntry),
		limit:    rate.Limit(rps),
		burst:    burst,
		idleTTL:  idleTTL,
		done:     make(chan struct{}),
	}

	if idleTTL > 0 {
		go t.evictLoop()
	}

	return t
}

// Allow reports whether a request for key may proceed now. Never blocks.
func (t *Throttle) Allow(key string) bool {
	return t.limiter(key).Allow()
}

// Wait blocks until a request for key is allowed or ctx is done.
func (t *Throttle) Wait(ctx context.Context, key string) error {
	return t.limiter(key).Wait(ctx)
}

func (t *Throttle) limiter(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.limiters[key]
	if !ok {
		e = &throttleEntry{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// Len returns the number of tracked keys.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.limiters)
}

// Stop shuts down the eviction goroutine.
func (t *Throttle) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
	})
}

func (t *Throttle) evictLoop() {
	ticker := time.NewTicker(t.idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case now := <-ticker.C:
			t.evictIdle(now)
		}
	}
}

func (t *Throttle) evictIdle(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, e := range t.limiters {
		if now.Sub(e.lastSeen) > t.idleTTL {
			delete(t.limiters, key)
		}
	}
}
