package fetcher

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultmark/vaultmark/internal/domain"
	"github.com/vaultmark/vaultmark/internal/errors"
	"github.com/vaultmark/vaultmark/internal/ratelimit"
	"github.com/vaultmark/vaultmark/internal/settings"
	"github.com/vaultmark/vaultmark/internal/xapi"
)

var testNow = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu         sync.Mutex
	meCalls    int
	pageCalls  int
	tokens     []string
	pages      []*xapi.Page
	meErr      error
	pageErr    error
	onBookmark func()
}

func (p *fakeProvider) Me(_ context.Context, accessToken string) (xapi.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.meCalls++
	if p.meErr != nil {
		return xapi.User{}, p.meErr
	}
	return xapi.User{ID: "42", Username: "me"}, nil
}

func (p *fakeProvider) Bookmarks(_ context.Context, _, userID, token string) (*xapi.Page, error) {
	if p.onBookmark != nil {
		p.onBookmark()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pageCalls++
	p.tokens = append(p.tokens, token)
	if p.pageErr != nil {
		return nil, p.pageErr
	}
	if len(p.pages) == 0 {
		return &xapi.Page{}, nil
	}
	page := p.pages[0]
	p.pages = p.pages[1:]
	return page, nil
}

type fakeRefresher struct {
	calls int
	err   error
}

func (r *fakeRefresher) RefreshToken(context.Context, int) error {
	r.calls++
	return r.err
}

type staticCreds domain.Credentials

func (c staticCreds) Credentials() domain.Credentials { return domain.Credentials(c) }

type countingPersister struct {
	mu    sync.Mutex
	saves []domain.Settings
}

func (p *countingPersister) SaveSettings(_ context.Context, s *domain.Settings) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves = append(p.saves, *s)
	return nil
}

type harness struct {
	fetcher   *Fetcher
	api       *fakeProvider
	refresher *fakeRefresher
	gate      *ratelimit.Gate
	state     *settings.State
	persister *countingPersister
	clock     *time.Time
}

func newHarness(t *testing.T, initial domain.Settings) *harness {
	t.Helper()
	h := &harness{
		api:       &fakeProvider{},
		refresher: &fakeRefresher{},
		persister: &countingPersister{},
	}
	now := testNow
	h.clock = &now
	h.gate = ratelimit.NewGate(initial.Rate)
	h.state = settings.New(&initial, h.persister)

	creds := staticCreds{ClientID: "client-1", AccessToken: "at", RefreshToken: "rt"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.fetcher = New(h.api, creds, h.refresher, h.gate, h.state, logger,
		WithClock(func() time.Time { return *h.clock }))
	return h
}

func post(id string, at time.Time) xapi.RawPost {
	return xapi.RawPost{ID: id, Text: "post " + id, CreatedAt: at.Format(time.RFC3339Nano), AuthorID: "u1"}
}

func TestFetch_FirstPageKeepsPassOpen(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	h.api.pages = []*xapi.Page{{
		Posts:     []xapi.RawPost{post("2", testNow.Add(-time.Hour)), post("1", testNow.Add(-2*time.Hour))},
		Users:     []xapi.User{{ID: "u1", Username: "ada", Name: "Ada"}},
		NextToken: "next-1",
	}}

	res := h.fetcher.Fetch(context.Background(), time.Time{})
	require.NoError(t, res.Err)
	assert.Equal(t, domain.OutcomeSuccess, res.Outcome)
	assert.Equal(t, ModeInitial, res.Mode)
	assert.Len(t, res.Bookmarks, 2)
	assert.True(t, res.HasMore())

	cursor := h.state.Snapshot().Cursor
	assert.Equal(t, "next-1", cursor.NextToken)
	assert.False(t, cursor.InitialSyncComplete)
	assert.Equal(t, 1, cursor.LastPageIndex)

	assert.Equal(t, testNow, h.state.Snapshot().Rate.LastAPICallTime, "rate state persisted")
	assert.Equal(t, []string{""}, h.api.tokens)
}

func TestFetch_ResumesFromSavedToken(t *testing.T) {
	h := newHarness(t, domain.Settings{
		Cursor: domain.PaginationCursor{NextToken: "next-1", LastPageIndex: 1},
	})
	h.api.pages = []*xapi.Page{{Posts: []xapi.RawPost{post("0", testNow.Add(-3*time.Hour))}}}

	res := h.fetcher.Fetch(context.Background(), time.Time{})
	require.NoError(t, res.Err)
	assert.Equal(t, ModeResume, res.Mode)
	assert.Equal(t, []string{"next-1"}, h.api.tokens)
}

func TestFetch_NoNextTokenCompletesPass(t *testing.T) {
	h := newHarness(t, domain.Settings{
		Cursor: domain.PaginationCursor{NextToken: "next-1", LastPageIndex: 3},
	})
	h.api.pages = []*xapi.Page{{Posts: []xapi.RawPost{post("0", testNow.Add(-3*time.Hour))}}}

	res := h.fetcher.Fetch(context.Background(), time.Time{})
	require.NoError(t, res.Err)

	cursor := h.state.Snapshot().Cursor
	assert.True(t, cursor.InitialSyncComplete)
	assert.Empty(t, cursor.NextToken)
	assert.Equal(t, 4, cursor.LastPageIndex)
	assert.False(t, res.HasMore())
}

func TestFetch_StrictCutoff(t *testing.T) {
	cutoff := testNow.Add(-time.Hour)
	h := newHarness(t, domain.Settings{Cursor: domain.PaginationCursor{InitialSyncComplete: true}})
	h.api.pages = []*xapi.Page{{
		Posts: []xapi.RawPost{
			post("new", cutoff.Add(time.Millisecond)),
			post("edge", cutoff),
			post("old", cutoff.Add(-time.Minute)),
		},
		NextToken: "more",
	}}

	res := h.fetcher.Fetch(context.Background(), cutoff)
	require.NoError(t, res.Err)
	assert.Equal(t, ModeIncremental, res.Mode)

	require.Len(t, res.Bookmarks, 1)
	assert.Equal(t, "new", res.Bookmarks[0].ID)

	cursor := h.state.Snapshot().Cursor
	assert.True(t, cursor.InitialSyncComplete, "cutoff reached, pass ends despite next token")
	assert.Empty(t, cursor.NextToken)
}

func TestFetch_IncrementalOverflowBecomesCatchUp(t *testing.T) {
	cutoff := testNow.Add(-24 * time.Hour)
	h := newHarness(t, domain.Settings{Cursor: domain.PaginationCursor{InitialSyncComplete: true}})
	h.api.pages = []*xapi.Page{
		{Posts: []xapi.RawPost{post("a", testNow.Add(-time.Hour))}, NextToken: "p2"},
		{Posts: []xapi.RawPost{post("b", testNow.Add(-2*time.Hour)), post("c", cutoff)}},
	}

	res := h.fetcher.Fetch(context.Background(), cutoff)
	require.NoError(t, res.Err)
	assert.True(t, res.HasMore())

	*h.clock = h.clock.Add(ratelimit.DefaultWindow)
	res = h.fetcher.Fetch(context.Background(), cutoff)
	require.NoError(t, res.Err)
	assert.Equal(t, ModeResume, res.Mode)
	require.Len(t, res.Bookmarks, 1)
	assert.Equal(t, "b", res.Bookmarks[0].ID)
	assert.False(t, res.HasMore())

	assert.Equal(t, []string{"", "p2"}, h.api.tokens)
}

func TestFetch_RateLimitedBeforeNetwork(t *testing.T) {
	h := newHarness(t, domain.Settings{
		Rate: domain.RateState{LastAPICallTime: testNow.Add(-5 * time.Minute), RateWindow: 15 * time.Minute},
	})

	res := h.fetcher.Fetch(context.Background(), time.Time{})
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, errors.ErrRateLimited)
	assert.Equal(t, domain.OutcomeRetryable, res.Outcome)

	wait, ok := errors.RetryAfterOf(res.Err)
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, wait)

	assert.Zero(t, h.api.meCalls)
	assert.Zero(t, h.api.pageCalls)
}

func TestFetch_BypassSkipsGate(t *testing.T) {
	h := newHarness(t, domain.Settings{
		Rate: domain.RateState{LastAPICallTime: testNow.Add(-time.Minute), BypassEnabled: true},
	})

	res := h.fetcher.Fetch(context.Background(), time.Time{})
	require.NoError(t, res.Err)
	assert.Equal(t, 1, h.api.pageCalls)
}

func TestFetch_ProviderRateLimitStillSpendsWindow(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	h.api.pageErr = &xapi.Error{Op: "bookmarks", Status: 429, RetryAfter: 7 * time.Minute, Err: xapi.ErrRateLimited}

	res := h.fetcher.Fetch(context.Background(), time.Time{})
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, errors.ErrRateLimited)

	wait, _ := errors.RetryAfterOf(res.Err)
	assert.Equal(t, 7*time.Minute, wait)

	assert.Equal(t, testNow, h.state.Snapshot().Rate.LastAPICallTime)
	assert.True(t, h.gate.IsLimited(testNow.Add(time.Minute)))
	assert.Equal(t, domain.PaginationCursor{}, h.state.Snapshot().Cursor, "cursor untouched")
}

func TestFetch_ProviderRateLimitDefaultsToWindow(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	h.api.pageErr = &xapi.Error{Op: "bookmarks", Status: 429, Err: xapi.ErrRateLimited}

	res := h.fetcher.Fetch(context.Background(), time.Time{})
	wait, ok := errors.RetryAfterOf(res.Err)
	require.True(t, ok)
	assert.Equal(t, ratelimit.DefaultWindow, wait)
}

func TestFetch_UnauthorizedRefreshesOnce(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	h.api.pageErr = &xapi.Error{Op: "bookmarks", Status: 401, Err: xapi.ErrUnauthorized}

	res := h.fetcher.Fetch(context.Background(), time.Time{})
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, errors.ErrResyncRequired)
	assert.Equal(t, domain.OutcomeRetryable, res.Outcome)
	assert.Equal(t, 1, h.refresher.calls)
	assert.Equal(t, 1, h.api.pageCalls, "fetch not repeated")
}

func TestFetch_UnauthorizedRefreshFails(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	h.api.meErr = &xapi.Error{Op: "me", Status: 401, Err: xapi.ErrUnauthorized}
	h.refresher.err = errors.Auth("Session expired")

	res := h.fetcher.Fetch(context.Background(), time.Time{})
	assert.ErrorIs(t, res.Err, errors.ErrAuth)
	assert.Equal(t, domain.OutcomeFatal, res.Outcome)
	assert.Zero(t, h.api.pageCalls)
}

func TestFetch_TransportErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode errors.Code
	}{
		{"timeout", &xapi.Error{Op: "bookmarks", Err: xapi.ErrTimeout}, errors.CodeTimeout},
		{"network", &xapi.Error{Op: "bookmarks", Err: xapi.ErrNetwork}, errors.CodeNetwork},
		{"server", &xapi.Error{Op: "bookmarks", Status: 503, Err: xapi.ErrServer}, errors.CodeNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, domain.Settings{})
			h.api.pageErr = tt.err

			res := h.fetcher.Fetch(context.Background(), time.Time{})
			assert.Equal(t, tt.wantCode, errors.CodeOf(res.Err))
			assert.Equal(t, domain.OutcomeRetryable, res.Outcome)
		})
	}
}

func TestFetch_StaleTokenDropped(t *testing.T) {
	h := newHarness(t, domain.Settings{Cursor: domain.PaginationCursor{NextToken: "stale", LastPageIndex: 2}})
	h.api.pageErr = &xapi.Error{Op: "bookmarks", Status: 400, Err: xapi.ErrBadRequest}

	res := h.fetcher.Fetch(context.Background(), time.Time{})
	require.Error(t, res.Err)
	assert.Equal(t, domain.OutcomeFatal, res.Outcome)

	cursor := h.state.Snapshot().Cursor
	assert.Empty(t, cursor.NextToken)
	assert.False(t, cursor.InitialSyncComplete)
}

func TestFetch_PreconditionsMakeNoCalls(t *testing.T) {
	h := newHarness(t, domain.Settings{})
	h.fetcher.creds = staticCreds{ClientID: "client-1"}

	res := h.fetcher.Fetch(context.Background(), time.Time{})
	assert.ErrorIs(t, res.Err, errors.ErrAuth)
	assert.Zero(t, h.api.meCalls)
	assert.True(t, h.state.Snapshot().Rate.LastAPICallTime.IsZero())
}

func TestFetch_RejectsConcurrentFetch(t *testing.T) {
	h := newHarness(t, domain.Settings{Rate: domain.RateState{BypassEnabled: true}})
	entered := make(chan struct{})
	release := make(chan struct{})
	h.api.onBookmark = func() {
		close(entered)
		<-release
	}

	done := make(chan Result)
	go func() { done <- h.fetcher.Fetch(context.Background(), time.Time{}) }()
	<-entered

	h.api.onBookmark = nil
	second := h.fetcher.Fetch(context.Background(), time.Time{})
	assert.ErrorIs(t, second.Err, errors.ErrSyncInProgress)

	close(release)
	first := <-done
	assert.NoError(t, first.Err)
	assert.Equal(t, 1, h.api.pageCalls)
}
