package scheduler

import (
	"context"
	"time"

	"github.com/vaultmark/vaultmark/internal/domain"
)

// Start arms the first automatic run. It is a no-op when auto sync is
// off. ctx bounds every automatic run.
func (s *Scheduler) Start(ctx context.Context) {
	s.slotMu.Lock()
	if s.cancel != nil {
		s.slotMu.Unlock()
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.slotMu.Unlock()

	if !s.cfg.AutoSync {
		s.logger.Info("automatic sync disabled")
		return
	}

	st := s.state.Snapshot()
	delay := s.nextDelay(st.Cursor)
	if st.Cursor.InitialSyncComplete && !s.gate.Bypassed() {
		// Resume the poll cadence across restarts.
		since := s.now().Sub(st.Rate.Reference())
		delay = max(s.cfg.PollInterval-since, s.gate.TimeRemaining(s.now()))
	}

	s.logger.Info("automatic sync started", "first_run_in", delay)
	s.schedule(delay)
}

// Stop cancels the pending run and waits for a running automatic one.
func (s *Scheduler) Stop() {
	s.slotMu.Lock()
	cancel := s.cancel
	if s.cancelNext != nil {
		s.cancelNext()
		s.cancelNext = nil
	}
	s.nextRunAt = time.Time{}
	s.slotMu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// NextRunAt returns when the pending automatic run fires, or zero.
func (s *Scheduler) NextRunAt() time.Time {
	s.slotMu.Lock()
	defer s.slotMu.Unlock()
	return s.nextRunAt
}

// schedule replaces the pending run with one after delay. Nothing is
// armed before Start, after Stop, or with auto sync off.
func (s *Scheduler) schedule(delay time.Duration) {
	s.slotMu.Lock()
	defer s.slotMu.Unlock()

	if s.ctx == nil || s.ctx.Err() != nil || !s.cfg.AutoSync {
		return
	}
	if s.cancelNext != nil {
		s.cancelNext()
	}
	delay = max(delay, 0)

	slotCtx, cancel := context.WithCancel(s.ctx)
	s.cancelNext = cancel
	s.nextRunAt = s.now().Add(delay)
	runCtx := s.ctx

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-slotCtx.Done():
			return
		case <-timer.C:
		}

		s.slotMu.Lock()
		if slotCtx.Err() != nil {
			s.slotMu.Unlock()
			return
		}
		s.nextRunAt = time.Time{}
		s.slotMu.Unlock()

		// Run on the loop context: replacing the slot must not abort a
		// run that already started.
		_, _ = s.RunSync(runCtx, false)
	}()
}

// reschedule arms the next run after an attempt that held the guard.
// A failed manual run is not retried on its own.
func (s *Scheduler) reschedule(report Report, err error) {
	switch {
	case err != nil && report.Manual:
		s.logger.Debug("manual sync failed; automatic schedule unchanged")
	case s.gate.Bypassed():
		s.schedule(s.cfg.BypassInterval)
	case err == nil:
		s.schedule(max(s.nextDelay(s.state.Snapshot().Cursor), s.cooldownRemaining()))
	case report.Outcome == domain.OutcomeRetryable:
		s.schedule(report.Cooldown)
	default:
		s.schedule(max(s.cfg.PollInterval, report.Cooldown))
	}
}

// nextDelay is the scheduling decision table:
//
//	bypass on                      -> short fixed interval
//	pass incomplete, window open   -> now
//	pass incomplete, window closed -> when the window reopens
//	pass complete                  -> poll interval
func (s *Scheduler) nextDelay(cursor domain.PaginationCursor) time.Duration {
	switch {
	case s.gate.Bypassed():
		return s.cfg.BypassInterval
	case !cursor.InitialSyncComplete:
		return s.gate.TimeRemaining(s.now())
	default:
		return s.cfg.PollInterval
	}
}
