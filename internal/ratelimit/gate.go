// Package ratelimit decides when the provider may be called again.
//
// Gate models the provider's one-call-per-window rule for the bookmark
// endpoint and blocks pre-emptively. Throttle is a plain token bucket for
// spacing bursts of outbound or inbound requests.
package ratelimit

import (
	"sync"
	"time"

	"github.com/vaultmark/vaultmark/internal/domain"
	"github.com/vaultmark/vaultmark/internal/errors"
)

// DefaultWindow is the provider's bookmark rate window.
const DefaultWindow = 15 * time.Minute

// Gate tracks the last API call and the last sync attempt.
type Gate struct {
	mu    sync.Mutex
	state domain.RateState
}

// NewGate restores a gate from persisted state.
func NewGate(state domain.RateState) *Gate {
	if state.RateWindow <= 0 {
		state.RateWindow = DefaultWindow
	}
	return &Gate{state: state}
}

// IsLimited reports whether a call at now would fall inside the window
// opened by the latest recorded call or attempt. The instant of the
// recorded call itself is not limited; a clock that moved backwards is.
func (g *Gate) IsLimited(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limitedLocked(now)
}

func (g *Gate) limitedLocked(now time.Time) bool {
	if g.state.BypassEnabled {
		return false
	}
	ref := g.state.Reference()
	if ref.IsZero() {
		return false
	}
	elapsed := now.Sub(ref)
	return elapsed != 0 && elapsed < g.state.RateWindow
}

// RecordCall marks that a network call is about to be issued. Call it
// before dispatch: a request that never completes still spends the window.
func (g *Gate) RecordCall(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.LastAPICallTime = now
}

// RecordSyncAttempt marks the start time of a sync attempt.
func (g *Gate) RecordSyncAttempt(startedAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.LastSyncAttemptTime = startedAt
}

// TimeRemaining returns how long until the window reopens, floor 0.
func (g *Gate) TimeRemaining(now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remainingLocked(now)
}

func (g *Gate) remainingLocked(now time.Time) time.Duration {
	if !g.limitedLocked(now) {
		return 0
	}
	remaining := g.state.RateWindow - now.Sub(g.state.Reference())
	if remaining > g.state.RateWindow {
		return g.state.RateWindow
	}
	return remaining
}

// Check returns a RATE_LIMITED error carrying the remaining wait when a
// call at now is not permitted.
func (g *Gate) Check(now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.limitedLocked(now) {
		return nil
	}
	return errors.RateLimited("Bookmark fetch is rate limited", g.remainingLocked(now))
}

// SetBypass toggles the diagnostic override that disables all window checks.
func (g *Gate) SetBypass(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.BypassEnabled = enabled
}

// Bypassed reports whether window checks are disabled.
func (g *Gate) Bypassed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.BypassEnabled
}

// Window returns the configured rate window.
func (g *Gate) Window() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.RateWindow
}

// State returns a copy of the gate state for persistence.
func (g *Gate) State() domain.RateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}
