package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vaultmark/vaultmark/internal/domain"
	domainerrors "github.com/vaultmark/vaultmark/internal/errors"
	"github.com/vaultmark/vaultmark/internal/scheduler"
)

func (s *Server) registerSyncRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "syncNow",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync",
		Summary:     "Sync now",
		Description: "Runs one manual sync. Returns 409 while a sync is running and 429 during a cooldown.",
		Tags:        []string{"Sync"},
	}, s.handleSyncNow)

	huma.Register(s.api, huma.Operation{
		OperationID: "resetSync",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/reset",
		Summary:     "Reset sync state",
		Description: "Forgets pagination progress and the incremental cutoff so the next sync starts a full import",
		Tags:        []string{"Sync"},
	}, s.handleResetSync)

	huma.Register(s.api, huma.Operation{
		OperationID: "syncStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/status",
		Summary:     "Sync status",
		Tags:        []string{"Sync"},
	}, s.handleSyncStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "syncHistory",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/history",
		Summary:     "Sync history",
		Description: "Lists recent sync runs, newest first",
		Tags:        []string{"Sync"},
	}, s.handleSyncHistory)

	huma.Register(s.api, huma.Operation{
		OperationID: "setBypass",
		Method:      http.MethodPut,
		Path:        "/api/v1/sync/bypass",
		Summary:     "Toggle rate limit bypass",
		Description: "Diagnostic override that disables the rate window. Use sparingly.",
		Tags:        []string{"Sync"},
	}, s.handleSetBypass)

	if s.sseHandler != nil {
		s.router.Get("/api/v1/sync/events", s.sseHandler.ServeHTTP)
	}
}

// SyncResponse reports the outcome of a manual sync.
type SyncResponse struct {
	RunID           string    `json:"run_id" doc:"Identifier of the sync run"`
	Outcome         string    `json:"outcome" doc:"success, retryable or fatal"`
	Message         string    `json:"message" doc:"Human-readable summary"`
	Fetched         int       `json:"fetched" doc:"Bookmarks returned by the provider"`
	Written         int       `json:"written" doc:"Notes written"`
	Skipped         int       `json:"skipped" doc:"Bookmarks already imported"`
	HasMore         bool      `json:"has_more" doc:"Whether the import pass continues on a later run"`
	CooldownSeconds int       `json:"cooldown_seconds" doc:"Seconds before another sync is accepted"`
	NextRunAt       time.Time `json:"next_run_at,omitzero" doc:"When the next automatic sync runs"`
}

// SyncOutput wraps the sync response for Huma.
type SyncOutput struct {
	Body SyncResponse
}

// SyncStatusResponse is the scheduler status plus derived waits.
type SyncStatusResponse struct {
	scheduler.Status
	RateLimitedSeconds int `json:"rate_limited_seconds" doc:"Seconds until the rate window reopens"`
}

// SyncStatusOutput wraps the status response for Huma.
type SyncStatusOutput struct {
	Body SyncStatusResponse
}

// SyncHistoryInput holds the history query.
type SyncHistoryInput struct {
	Limit int `query:"limit" default:"20" minimum:"1" maximum:"50" doc:"Maximum runs to return"`
}

// SyncHistoryResponse lists sync runs.
type SyncHistoryResponse struct {
	Runs []domain.SyncRun `json:"runs" doc:"Sync runs, newest first"`
}

// SyncHistoryOutput wraps the history response for Huma.
type SyncHistoryOutput struct {
	Body SyncHistoryResponse
}

// BypassInput toggles the rate limit bypass.
type BypassInput struct {
	Body struct {
		Enabled bool `json:"enabled" doc:"Whether to bypass the rate window"`
	}
}

func (s *Server) handleSyncNow(ctx context.Context, _ *struct{}) (*SyncOutput, error) {
	// The run outlives a client that disconnects mid-sync.
	report, err := s.services.Sync.RunSync(context.WithoutCancel(ctx), true)
	if err != nil {
		return nil, err
	}
	return &SyncOutput{Body: SyncResponse{
		RunID:           report.RunID,
		Outcome:         report.Outcome.String(),
		Message:         report.Message,
		Fetched:         report.Fetched,
		Written:         report.Written,
		Skipped:         report.Skipped,
		HasMore:         report.HasMore,
		CooldownSeconds: seconds(report.Cooldown),
		NextRunAt:       report.NextRunAt,
	}}, nil
}

func (s *Server) handleResetSync(ctx context.Context, _ *struct{}) (*MessageOutput, error) {
	if err := s.services.Sync.Reset(ctx); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Sync state reset; the next sync starts a full import"}}, nil
}

func (s *Server) handleSyncStatus(_ context.Context, _ *struct{}) (*SyncStatusOutput, error) {
	st := s.services.Sync.Status()
	return &SyncStatusOutput{Body: SyncStatusResponse{
		Status:             st,
		RateLimitedSeconds: seconds(st.RateLimitedFor),
	}}, nil
}

func (s *Server) handleSyncHistory(ctx context.Context, input *SyncHistoryInput) (*SyncHistoryOutput, error) {
	if s.services.History == nil {
		return nil, domainerrors.NotFound("Sync history is not available")
	}
	runs, err := s.services.History.ListSyncRuns(ctx, input.Limit)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "Could not read sync history")
	}
	if runs == nil {
		runs = []domain.SyncRun{}
	}
	return &SyncHistoryOutput{Body: SyncHistoryResponse{Runs: runs}}, nil
}

func (s *Server) handleSetBypass(ctx context.Context, input *BypassInput) (*MessageOutput, error) {
	if err := s.services.Sync.SetBypass(ctx, input.Body.Enabled); err != nil {
		return nil, err
	}
	msg := "Rate limit bypass disabled"
	if input.Body.Enabled {
		msg = "Rate limit bypass enabled"
	}
	return &MessageOutput{Body: MessageResponse{Message: msg}}, nil
}

// seconds rounds a wait up to whole seconds.
func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
