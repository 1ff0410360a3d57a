package api

import (
	"context"

	"github.com/vaultmark/vaultmark/internal/auth"
	"github.com/vaultmark/vaultmark/internal/domain"
	"github.com/vaultmark/vaultmark/internal/scheduler"
	"github.com/vaultmark/vaultmark/internal/sse"
)

// Authorizer runs the OAuth authorization flow.
type Authorizer interface {
	Begin(ctx context.Context) (auth.AuthRequest, error)
	Complete(ctx context.Context, callbackURI string) error
	Revoke(ctx context.Context) bool
	Status() auth.Status
}

// Syncer runs and inspects bookmark syncs.
type Syncer interface {
	RunSync(ctx context.Context, manual bool) (scheduler.Report, error)
	Reset(ctx context.Context) error
	SetBypass(ctx context.Context, enabled bool) error
	Status() scheduler.Status
	Kick()
}

// RunHistory lists recorded sync runs, newest first.
type RunHistory interface {
	ListSyncRuns(ctx context.Context, limit int) ([]domain.SyncRun, error)
}

// Events publishes status events and reports connected listeners.
type Events interface {
	Emit(event sse.Event)
	ClientCount() int
}

// Services groups what the control API drives. History and Events may
// be nil.
type Services struct {
	Auth    Authorizer
	Sync    Syncer
	History RunHistory
	Events  Events
}
