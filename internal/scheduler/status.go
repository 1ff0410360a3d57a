package scheduler

import (
	"context"
	"time"

	"github.com/vaultmark/vaultmark/internal/domain"
	"github.com/vaultmark/vaultmark/internal/errors"
)

// Status is a point-in-time view of the scheduler.
type Status struct {
	InProgress          bool            `json:"in_progress"`
	AutoSync            bool            `json:"auto_sync"`
	Bypass              bool            `json:"bypass_rate_limit"`
	CooldownUntil       time.Time       `json:"cooldown_until,omitzero"`
	RateLimitedFor      time.Duration   `json:"-"`
	NextRunAt           time.Time       `json:"next_run_at,omitzero"`
	InitialSyncComplete bool            `json:"initial_sync_complete"`
	PagesFetched        int             `json:"pages_fetched"`
	LastSyncTimestamp   time.Time       `json:"last_sync_timestamp,omitzero"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
	LastRun             *domain.SyncRun `json:"last_run,omitempty"`
}

// Status reports the current sync state.
func (s *Scheduler) Status() Status {
	st := s.state.Snapshot()
	now := s.now()

	s.mu.Lock()
	out := Status{
		CooldownUntil:       s.cooldownUntil,
		ConsecutiveFailures: s.consecutiveFailures,
	}
	if s.lastRun != nil {
		run := *s.lastRun
		out.LastRun = &run
	}
	s.mu.Unlock()

	if !out.CooldownUntil.After(now) {
		out.CooldownUntil = time.Time{}
	}
	out.InProgress = s.inProgress.Load()
	out.AutoSync = s.cfg.AutoSync
	out.Bypass = s.gate.Bypassed()
	out.RateLimitedFor = s.gate.TimeRemaining(now)
	out.NextRunAt = s.NextRunAt()
	out.InitialSyncComplete = st.Cursor.InitialSyncComplete
	out.PagesFetched = st.Cursor.LastPageIndex
	out.LastSyncTimestamp = st.LastSyncTimestamp
	return out
}

// Reset forgets pagination progress and the incremental cutoff so the
// next run starts a full import. Already imported bookmarks stay in the
// ledger and are skipped.
func (s *Scheduler) Reset(ctx context.Context) error {
	if s.inProgress.Load() {
		return errors.SyncInProgress("Cannot reset while a sync is running")
	}
	if err := s.state.Update(ctx, func(st *domain.Settings) {
		st.Cursor.Reset()
		st.LastSyncTimestamp = time.Time{}
	}); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "could not reset sync state")
	}

	s.logger.Info("sync state reset")
	s.schedule(s.nextDelay(domain.PaginationCursor{}))
	return nil
}

// SetBypass toggles the diagnostic rate-limit bypass and persists it.
func (s *Scheduler) SetBypass(ctx context.Context, enabled bool) error {
	s.gate.SetBypass(enabled)
	rate := s.gate.State()
	if err := s.state.Update(ctx, func(st *domain.Settings) { st.Rate = rate }); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "could not save rate state")
	}
	s.logger.Warn("rate limit bypass changed", "enabled", enabled)
	if enabled {
		s.schedule(s.cfg.BypassInterval)
	}
	return nil
}

// Kick schedules an automatic run as soon as the rate window allows,
// e.g. right after the account is connected.
func (s *Scheduler) Kick() {
	s.schedule(s.gate.TimeRemaining(s.now()))
}
