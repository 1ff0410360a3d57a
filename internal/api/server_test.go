package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultmark/vaultmark/internal/auth"
	"github.com/vaultmark/vaultmark/internal/domain"
	"github.com/vaultmark/vaultmark/internal/ratelimit"
	"github.com/vaultmark/vaultmark/internal/scheduler"
	"github.com/vaultmark/vaultmark/internal/sse"
)

type fakeAuth struct {
	mu          sync.Mutex
	status      auth.Status
	beginErr    error
	completeErr error
	completed   []string
	revoked     int
}

func (a *fakeAuth) Begin(context.Context) (auth.AuthRequest, error) {
	if a.beginErr != nil {
		return auth.AuthRequest{}, a.beginErr
	}
	return auth.AuthRequest{
		AuthorizationURL: "https://x.com/i/oauth2/authorize?state=st-1",
		CodeVerifier:     "verifier",
		State:            "st-1",
	}, nil
}

func (a *fakeAuth) Complete(_ context.Context, uri string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.completed = append(a.completed, uri)
	return a.completeErr
}

func (a *fakeAuth) Revoke(context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revoked++
	return true
}

func (a *fakeAuth) Status() auth.Status { return a.status }

type fakeSync struct {
	mu       sync.Mutex
	report   scheduler.Report
	runErr   error
	resetErr error
	status   scheduler.Status
	runs     int
	kicks    int
	bypass   []bool
	ctxErr   error
}

func (f *fakeSync) RunSync(ctx context.Context, manual bool) (scheduler.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	f.ctxErr = ctx.Err()
	r := f.report
	r.Manual = manual
	return r, f.runErr
}

func (f *fakeSync) Reset(context.Context) error { return f.resetErr }

func (f *fakeSync) SetBypass(_ context.Context, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bypass = append(f.bypass, enabled)
	return nil
}

func (f *fakeSync) Status() scheduler.Status { return f.status }

func (f *fakeSync) Kick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicks++
}

type fakeHistory struct {
	runs  []domain.SyncRun
	limit int
}

func (h *fakeHistory) ListSyncRuns(_ context.Context, limit int) ([]domain.SyncRun, error) {
	h.limit = limit
	if limit < len(h.runs) {
		return h.runs[:limit], nil
	}
	return h.runs, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []sse.Event
}

func (e *fakeEvents) Emit(event sse.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *fakeEvents) ClientCount() int { return 2 }

func (e *fakeEvents) types() []sse.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]sse.EventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type testServer struct {
	*Server
	api     humatest.TestAPI
	auth    *fakeAuth
	sync    *fakeSync
	history *fakeHistory
	events  *fakeEvents
}

func setupTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()

	ts := &testServer{
		auth: &fakeAuth{status: auth.Status{ClientConfigured: true, Authenticated: true}},
		sync: &fakeSync{
			report: scheduler.Report{
				RunID:    "run-1",
				Outcome:  domain.OutcomeSuccess,
				Fetched:  3,
				Written:  2,
				Skipped:  1,
				Cooldown: 15 * time.Minute,
				Message:  "Imported 2 bookmarks, 1 already imported",
			},
		},
		history: &fakeHistory{},
		events:  &fakeEvents{},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts.Server = NewServer(Services{
		Auth:    ts.auth,
		Sync:    ts.sync,
		History: ts.history,
		Events:  ts.events,
	}, nil, logger, opts...)
	t.Cleanup(ts.Server.Close)

	ts.api = humatest.Wrap(t, ts.Server.API())
	return ts
}

// testEnvelope mirrors Envelope with a typed payload.
type testEnvelope[T any] struct {
	Version int  `json:"v"`
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Code              string `json:"code"`
		Message           string `json:"message"`
		RetryAfterSeconds int    `json:"retry_after_seconds"`
	} `json:"error"`
}

func decode[T any](t *testing.T, body []byte) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	assert.Equal(t, EnvelopeVersion, env.Version)
	return env
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	env := decode[HealthResponse](t, resp.Body.Bytes())
	assert.True(t, env.Success)
	assert.Equal(t, "healthy", env.Data.Status)
	assert.Equal(t, "2 connected clients", env.Data.Components["events"].Message)
}

func TestHealthCheck_DegradedWhenNotConnected(t *testing.T) {
	ts := setupTestServer(t)
	ts.auth.status = auth.Status{ClientConfigured: true}
	ts.sync.status = scheduler.Status{ConsecutiveFailures: 3}

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	env := decode[HealthResponse](t, resp.Body.Bytes())
	assert.Equal(t, "degraded", env.Data.Status)
	assert.Equal(t, "account not connected", env.Data.Components["account"].Message)
	assert.Equal(t, "3 consecutive failures", env.Data.Components["sync"].Message)
}

// newTestLimiter allows one request and then refuses for a long time.
func newTestLimiter() *ratelimit.Throttle {
	return ratelimit.NewThrottle(0.001, 1, time.Minute)
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := newTestLimiter()
	ts := setupTestServer(t, WithLimiter(limiter))

	resp := ts.api.Get("/health")
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/health")
	require.Equal(t, http.StatusTooManyRequests, resp.Code)

	env := decode[struct{}](t, resp.Body.Bytes())
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)
}

func TestCORS_LoopbackOnly(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health", "Origin: http://127.0.0.1:5173")
	assert.Equal(t, "http://127.0.0.1:5173", resp.Header().Get("Access-Control-Allow-Origin"))

	resp = ts.api.Get("/health", "Origin: http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", resp.Header().Get("Access-Control-Allow-Origin"))

	resp = ts.api.Get("/health", "Origin: https://evil.example")
	assert.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestIsLoopbackOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"http://127.0.0.1:8787", true},
		{"http://[::1]:8787", true},
		{"http://localhost", true},
		{"https://localhost.example.com", false},
		{"https://example.com", false},
		{"null", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, isLoopbackOrigin(tt.origin))
		})
	}
}
