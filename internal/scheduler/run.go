package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vaultmark/vaultmark/internal/domain"
	"github.com/vaultmark/vaultmark/internal/errors"
	"github.com/vaultmark/vaultmark/internal/sse"
)

// Report summarizes one sync attempt.
type Report struct {
	RunID     string         `json:"run_id"`
	Manual    bool           `json:"manual"`
	Outcome   domain.Outcome `json:"-"`
	Fetched   int            `json:"fetched"`
	Written   int            `json:"written"`
	Skipped   int            `json:"skipped"`
	HasMore   bool           `json:"has_more"`
	Cooldown  time.Duration  `json:"-"`
	NextRunAt time.Time      `json:"next_run_at,omitzero"`
	Message   string         `json:"message"`
}

func newRunID() string {
	return uuid.NewString()
}

// RunSync performs one sync attempt. A manual run reports failures to the
// caller and through events; an automatic run stays quiet unless failures
// persist, and reschedules itself.
//
// Attempts are never queued: one that finds another in progress, or an
// active cooldown, is declined at once.
func (s *Scheduler) RunSync(ctx context.Context, manual bool) (Report, error) {
	if err := s.preconditions(); err != nil {
		return Report{Manual: manual}, s.decline(manual, err, s.cfg.PollInterval)
	}

	if remaining := s.cooldownRemaining(); remaining > 0 && !s.gate.Bypassed() {
		err := errors.Cooldown("Sync is cooling down", remaining)
		return Report{Manual: manual, Cooldown: remaining}, s.decline(manual, err, remaining)
	}

	if !s.inProgress.CompareAndSwap(false, true) {
		// The running attempt reschedules when it finishes.
		return Report{Manual: manual}, s.decline(manual, errors.SyncInProgress("A sync is already running"), 0)
	}

	report, runErr := func() (Report, error) {
		defer s.inProgress.Store(false)
		return s.attempt(ctx, manual)
	}()

	s.reschedule(report, runErr)
	report.NextRunAt = s.NextRunAt()
	return report, runErr
}

// preconditions fails fast when the account or vault is not set up.
func (s *Scheduler) preconditions() error {
	creds := s.creds.Credentials()
	switch {
	case creds.ClientID == "":
		return errors.Config("Client ID is not configured")
	case !creds.Authenticated():
		return errors.Auth("Account is not connected")
	case s.writer == nil:
		return errors.Config("Vault path is not configured")
	}
	return nil
}

// decline reports a refused attempt. Manual callers get an event;
// automatic ones are rearmed after retryIn, or left alone when zero.
func (s *Scheduler) decline(manual bool, err error, retryIn time.Duration) error {
	if manual {
		data := sse.SyncEventData{Manual: true, Message: errors.UserMessage(err)}
		if wait, ok := errors.RetryAfterOf(err); ok {
			data.RetryAfterSeconds = int((wait + time.Second - 1) / time.Second)
		}
		s.emit(sse.NewSyncEvent(sse.EventSyncDeclined, data))
		s.logger.Info("manual sync declined", "reason", errors.CodeOf(err))
		return err
	}

	s.logger.Debug("automatic sync skipped", "reason", errors.CodeOf(err))
	if retryIn > 0 {
		s.schedule(retryIn)
	}
	return err
}

// attempt runs fetch+write while holding the in-progress guard.
func (s *Scheduler) attempt(ctx context.Context, manual bool) (report Report, err error) {
	startedAt := s.now()
	run := &domain.SyncRun{ID: s.newID(), Manual: manual, StartedAt: startedAt}
	report.RunID = run.ID
	report.Manual = manual
	log := s.logger.With("run_id", run.ID, "manual", manual)

	defer func() {
		if r := recover(); r != nil {
			err = errors.Internalf("sync panicked: %v", r)
			report.Outcome = domain.OutcomeFatal
			report.Message = errors.UserMessage(err)
			log.Error("sync panicked", "panic", r)
		}
		s.finish(ctx, run, report, err)
	}()

	if manual {
		s.emit(sse.NewSyncEvent(sse.EventSyncStarted, sse.SyncEventData{RunID: run.ID, Manual: true}))
	}
	log.Info("sync started")

	lastSync := s.state.Snapshot().LastSyncTimestamp
	res := s.fetcher.Fetch(ctx, lastSync)
	report.Fetched = len(res.Bookmarks)
	report.HasMore = res.HasMore()

	if res.Err != nil {
		report.Outcome = res.Outcome
		return report, s.fail(log, &report, res.Err)
	}

	if len(res.Bookmarks) == 0 {
		// An empty last page still completes the pass.
		if err := s.advanceCutoff(ctx, res.Cursor, startedAt); err != nil {
			report.Outcome = domain.OutcomeFatal
			return report, s.fail(log, &report, err)
		}
		report.Outcome = domain.OutcomeSuccess
		report.Cooldown = s.cfg.EmptyCooldown
		report.Message = "No new bookmarks"
		s.setCooldown(report.Cooldown)
		log.Info("sync found nothing new", "has_more", report.HasMore)
		return report, nil
	}

	written, err := s.writer.Write(ctx, res.Bookmarks)
	report.Written = written.Written
	report.Skipped = written.Skipped
	if err != nil {
		report.Outcome = domain.Classify(err)
		return report, s.fail(log, &report, err)
	}

	if err := s.advanceCutoff(ctx, res.Cursor, startedAt); err != nil {
		report.Outcome = domain.OutcomeFatal
		return report, s.fail(log, &report, err)
	}

	report.Outcome = domain.OutcomeSuccess
	report.Cooldown = s.gate.Window()
	report.Message = importedMessage(report)
	s.setCooldown(report.Cooldown)

	log.Info("sync completed",
		"fetched", report.Fetched,
		"written", report.Written,
		"skipped", report.Skipped,
		"has_more", report.HasMore,
	)
	return report, nil
}

// advanceCutoff moves the incremental cutoff to startedAt once a full pass
// is done. Mid-pass it stays put so later pages are never skipped.
func (s *Scheduler) advanceCutoff(ctx context.Context, cursor domain.PaginationCursor, startedAt time.Time) error {
	if !cursor.InitialSyncComplete {
		return nil
	}
	if err := s.state.Update(ctx, func(st *domain.Settings) {
		st.LastSyncTimestamp = startedAt
	}); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "could not save sync timestamp")
	}
	return nil
}

// fail applies the error cooldown: the wait embedded in err, else the
// configured default.
func (s *Scheduler) fail(log *slog.Logger, report *Report, err error) error {
	cooldown, ok := errors.RetryAfterOf(err)
	if !ok {
		cooldown = s.cfg.ErrorCooldown
	}
	report.Cooldown = cooldown
	report.Message = errors.UserMessage(err)
	s.setCooldown(cooldown)

	log.Warn("sync failed",
		"code", errors.CodeOf(err),
		"outcome", report.Outcome,
		"cooldown", cooldown,
		"error", err,
		"details", errors.DetailsOf(err),
	)
	return err
}

// finish records the attempt against the rate window, stores the run and
// publishes the result.
func (s *Scheduler) finish(ctx context.Context, run *domain.SyncRun, report Report, err error) {
	s.gate.RecordSyncAttempt(run.StartedAt)
	rate := s.gate.State()
	if uerr := s.state.Update(ctx, func(st *domain.Settings) { st.Rate = rate }); uerr != nil {
		s.logger.Error("failed to save rate state", "run_id", run.ID, "error", uerr)
	}

	run.FinishedAt = s.now()
	run.Outcome = report.Outcome.String()
	run.Fetched = report.Fetched
	run.Written = report.Written
	run.Skipped = report.Skipped
	if err != nil {
		run.Error = errors.UserMessage(err)
	}

	s.mu.Lock()
	s.lastRun = run
	if err != nil {
		s.consecutiveFailures++
	} else {
		s.consecutiveFailures = 0
	}
	failures := s.consecutiveFailures
	s.mu.Unlock()

	if s.runs != nil {
		if rerr := s.runs.AddSyncRun(context.WithoutCancel(ctx), run); rerr != nil {
			s.logger.Warn("failed to record sync run", "run_id", run.ID, "error", rerr)
		}
	}

	data := sse.SyncEventData{
		RunID:   run.ID,
		Manual:  run.Manual,
		Message: report.Message,
		Fetched: report.Fetched,
		Written: report.Written,
		Skipped: report.Skipped,
		HasMore: report.HasMore,
	}
	switch {
	case err != nil:
		if run.Manual || report.Outcome == domain.OutcomeFatal || failures >= failureAlertThreshold {
			if wait, ok := errors.RetryAfterOf(err); ok {
				data.RetryAfterSeconds = int((wait + time.Second - 1) / time.Second)
			}
			s.emit(sse.NewSyncEvent(sse.EventSyncFailed, data))
		}
	case !run.Manual:
		// Automatic successes are silent.
	case report.Fetched == 0:
		s.emit(sse.NewSyncEvent(sse.EventSyncEmpty, data))
	default:
		s.emit(sse.NewSyncEvent(sse.EventSyncCompleted, data))
	}
}

func importedMessage(r Report) string {
	msg := fmt.Sprintf("Imported %d bookmark", r.Written)
	if r.Written != 1 {
		msg += "s"
	}
	if r.Skipped > 0 {
		msg += fmt.Sprintf(", %d already imported", r.Skipped)
	}
	if r.HasMore {
		msg += "; more will follow"
	}
	return msg
}

func (s *Scheduler) setCooldown(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cooldownUntil = s.now().Add(d)
}

func (s *Scheduler) cooldownRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if remaining := s.cooldownUntil.Sub(s.now()); remaining > 0 {
		return remaining
	}
	return 0
}
