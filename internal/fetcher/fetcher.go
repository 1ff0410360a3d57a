// Package fetcher runs one bookmark fetch cycle: resolve the user, request
// a single page under the rate gate, normalize it, and persist the
// pagination cursor.
package fetcher

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vaultmark/vaultmark/internal/domain"
	"github.com/vaultmark/vaultmark/internal/errors"
	"github.com/vaultmark/vaultmark/internal/ratelimit"
	"github.com/vaultmark/vaultmark/internal/settings"
	"github.com/vaultmark/vaultmark/internal/xapi"
)

// Provider is the subset of the provider API the fetcher calls.
type Provider interface {
	Me(ctx context.Context, accessToken string) (xapi.User, error)
	Bookmarks(ctx context.Context, accessToken, userID, paginationToken string) (*xapi.Page, error)
}

// Credentials exposes the current tokens.
type Credentials interface {
	Credentials() domain.Credentials
}

// Refresher renews an expired access token.
type Refresher interface {
	RefreshToken(ctx context.Context, attempt int) error
}

// Mode says which kind of page request a fetch made.
type Mode string

// Fetch modes.
const (
	ModeInitial     Mode = "initial"
	ModeResume      Mode = "resume"
	ModeIncremental Mode = "incremental"
)

// Result is the outcome of one fetch cycle.
type Result struct {
	Bookmarks []domain.Bookmark
	// Cursor is the persisted cursor after this fetch.
	Cursor  domain.PaginationCursor
	Mode    Mode
	Outcome domain.Outcome
	Err     error
}

// HasMore reports whether the pass still has pages to fetch.
func (r Result) HasMore() bool {
	return !r.Cursor.InitialSyncComplete
}

func failed(err error) Result {
	return Result{Outcome: domain.Classify(err), Err: err}
}

// Fetcher fetches bookmarks one page per rate window.
type Fetcher struct {
	api       Provider
	creds     Credentials
	refresher Refresher
	gate      *ratelimit.Gate
	state     *settings.State
	logger    *slog.Logger
	now       func() time.Time

	inFlight atomic.Bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// New creates a fetcher.
func New(api Provider, creds Credentials, refresher Refresher, gate *ratelimit.Gate, state *settings.State, logger *slog.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{
		api:       api,
		creds:     creds,
		refresher: refresher,
		gate:      gate,
		state:     state,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch requests the next page of bookmarks. Items created at or before
// lastSyncTimestamp are dropped when an incremental cutoff applies.
//
// The rate gate is checked once before any network activity, and every
// call is recorded (and persisted) before it is dispatched. A rejected
// access token triggers one refresh; the fetch itself is not repeated and
// a retryable RESYNC_REQUIRED is returned instead.
func (f *Fetcher) Fetch(ctx context.Context, lastSyncTimestamp time.Time) Result {
	if !f.inFlight.CompareAndSwap(false, true) {
		return failed(errors.SyncInProgress("A fetch is already running"))
	}
	defer f.inFlight.Store(false)

	creds := f.creds.Credentials()
	if creds.ClientID == "" {
		return failed(errors.Config("Client ID is not configured"))
	}
	if !creds.Authenticated() {
		return failed(errors.Auth("Account is not connected"))
	}

	if err := f.gate.Check(f.now()); err != nil {
		return failed(err)
	}

	if err := f.recordCall(ctx); err != nil {
		return failed(err)
	}
	user, err := f.api.Me(ctx, creds.AccessToken)
	if err != nil {
		return failed(f.translate(ctx, err, false))
	}

	cursor := f.state.Snapshot().Cursor
	mode, token, cutoff := plan(cursor, lastSyncTimestamp)

	log := f.logger.With("mode", mode, "page", cursor.LastPageIndex+1)
	log.Info("fetching bookmarks page", "cutoff", cutoff)

	if err := f.recordCall(ctx); err != nil {
		return failed(err)
	}
	page, err := f.api.Bookmarks(ctx, creds.AccessToken, user.ID, token)
	if err != nil {
		return failed(f.translate(ctx, err, token != ""))
	}

	bookmarks, reachedCutoff := Normalize(page, cutoff)
	cursor.Advance(page.NextToken, reachedCutoff)

	// Cursor persistence happens before returning so a crash during note
	// writing never replays a page the provider already served.
	if err := f.state.Update(ctx, func(s *domain.Settings) {
		s.Cursor = cursor
	}); err != nil {
		return failed(errors.Wrap(err, errors.CodeInternal, "could not save pagination cursor"))
	}

	log.Info("bookmarks page fetched",
		"received", len(page.Posts),
		"kept", len(bookmarks),
		"has_more", !cursor.InitialSyncComplete,
	)

	return Result{
		Bookmarks: bookmarks,
		Cursor:    cursor,
		Mode:      mode,
		Outcome:   domain.OutcomeSuccess,
	}
}

// plan picks the page request for the current cursor. A resumed pass
// keeps the cutoff it started with; the timestamp is only ever advanced
// once a pass completes, so it is still the right one.
func plan(cursor domain.PaginationCursor, lastSync time.Time) (Mode, string, time.Time) {
	switch {
	case cursor.Resuming():
		return ModeResume, cursor.NextToken, lastSync
	case cursor.InitialSyncComplete:
		return ModeIncremental, "", lastSync
	default:
		return ModeInitial, "", time.Time{}
	}
}

// recordCall spends the rate window and persists it before dispatch.
func (f *Fetcher) recordCall(ctx context.Context) error {
	f.gate.RecordCall(f.now())
	rate := f.gate.State()
	if err := f.state.Update(ctx, func(s *domain.Settings) {
		s.Rate = rate
	}); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "could not save rate state")
	}
	return nil
}
