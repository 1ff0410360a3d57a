// Package scheduler owns the sync loop: it serializes fetch+write
// attempts, applies cooldowns, and keeps one pending automatic run.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vaultmark/vaultmark/internal/domain"
	"github.com/vaultmark/vaultmark/internal/fetcher"
	"github.com/vaultmark/vaultmark/internal/notes"
	"github.com/vaultmark/vaultmark/internal/ratelimit"
	"github.com/vaultmark/vaultmark/internal/settings"
	"github.com/vaultmark/vaultmark/internal/sse"
)

// failureAlertThreshold is how many automatic failures in a row are
// surfaced as an event.
const failureAlertThreshold = 3

// Fetcher fetches the next page of bookmarks.
type Fetcher interface {
	Fetch(ctx context.Context, lastSyncTimestamp time.Time) fetcher.Result
}

// NoteWriter persists bookmarks as notes.
type NoteWriter interface {
	Write(ctx context.Context, bookmarks []domain.Bookmark) (notes.WriteResult, error)
}

// Credentials exposes the current tokens.
type Credentials interface {
	Credentials() domain.Credentials
}

// RunRecorder keeps the history of sync runs.
type RunRecorder interface {
	AddSyncRun(ctx context.Context, run *domain.SyncRun) error
}

// Emitter publishes status events.
type Emitter interface {
	Emit(event sse.Event)
}

// Config holds scheduling intervals.
type Config struct {
	EmptyCooldown  time.Duration
	ErrorCooldown  time.Duration
	PollInterval   time.Duration
	BypassInterval time.Duration
	AutoSync       bool
}

// Scheduler runs syncs manually or on its own timer.
type Scheduler struct {
	cfg     Config
	fetcher Fetcher
	writer  NoteWriter
	creds   Credentials
	gate    *ratelimit.Gate
	state   *settings.State
	runs    RunRecorder
	events  Emitter
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	inProgress atomic.Bool

	mu                  sync.Mutex
	cooldownUntil       time.Time
	lastRun             *domain.SyncRun
	consecutiveFailures int

	// The single pending-run slot.
	slotMu     sync.Mutex
	ctx        context.Context //nolint:containedctx // lifetime of the automatic loop
	cancel     context.CancelFunc
	nextRunAt  time.Time
	cancelNext context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a scheduler. writer may be nil when no vault is configured;
// runs and events may be nil.
func New(
	cfg Config,
	f Fetcher,
	writer NoteWriter,
	creds Credentials,
	gate *ratelimit.Gate,
	state *settings.State,
	runs RunRecorder,
	events Emitter,
	logger *slog.Logger,
	opts ...Option,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cfg:     cfg.withDefaults(),
		fetcher: f,
		writer:  writer,
		creds:   creds,
		gate:    gate,
		state:   state,
		runs:    runs,
		events:  events,
		logger:  logger,
		now:     time.Now,
		newID:   newRunID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func (c Config) withDefaults() Config {
	if c.EmptyCooldown <= 0 {
		c.EmptyCooldown = time.Minute
	}
	if c.ErrorCooldown <= 0 {
		c.ErrorCooldown = 5 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Hour
	}
	if c.BypassInterval <= 0 {
		c.BypassInterval = time.Minute
	}
	return c
}

func (s *Scheduler) emit(e sse.Event) {
	if s.events != nil {
		s.events.Emit(e)
	}
}
