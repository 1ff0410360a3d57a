package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/vaultmark/vaultmark/internal/config"
	"github.com/vaultmark/vaultmark/internal/fetcher"
	"github.com/vaultmark/vaultmark/internal/logger"
	"github.com/vaultmark/vaultmark/internal/notes"
	"github.com/vaultmark/vaultmark/internal/ratelimit"
	"github.com/vaultmark/vaultmark/internal/scheduler"
	"github.com/vaultmark/vaultmark/internal/settings"
	"github.com/vaultmark/vaultmark/internal/tokenstore"
	"github.com/vaultmark/vaultmark/internal/xapi"
)

// XAPIClientHandle wraps the provider API client with shutdown capability.
type XAPIClientHandle struct {
	*xapi.Client
}

// Shutdown implements do.Shutdownable.
func (h *XAPIClientHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideXAPIClient provides the provider REST client.
func ProvideXAPIClient(i do.Injector) (*XAPIClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := xapi.New(cfg.Provider.APIBaseURL, cfg.Sync.RequestTimeout, log.Component("xapi"))

	return &XAPIClientHandle{Client: client}, nil
}

// ProvideFetcher provides the one-page-per-window bookmark fetcher.
func ProvideFetcher(i do.Injector) (*fetcher.Fetcher, error) {
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*XAPIClientHandle](i)
	tokens := do.MustInvoke[*tokenstore.Store](i)
	flow := do.MustInvoke[*AuthFlowHandle](i)
	gate := do.MustInvoke[*ratelimit.Gate](i)
	state := do.MustInvoke[*settings.State](i)

	return fetcher.New(client.Client, tokens, flow.Flow, gate, state, log.Component("fetcher")), nil
}

// NoteWriterHandle holds the note writer. Writer is nil when no vault
// path is configured; syncs then fail their storage precondition.
type NoteWriterHandle struct {
	Writer *notes.Writer
}

// ProvideNoteWriter provides the vault note writer.
func ProvideNoteWriter(i do.Injector) (*NoteWriterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	ledger := do.MustInvoke[*LedgerHandle](i)
	state := do.MustInvoke[*settings.State](i)

	if cfg.Vault.Path == "" {
		log.Warn("No vault path configured - syncs will fail until VAULT_PATH is set")
		return &NoteWriterHandle{}, nil
	}

	vault, err := notes.NewDirVault(cfg.Vault.Path)
	if err != nil {
		return nil, err
	}

	log.Info("Vault ready", "path", cfg.Vault.Path, "folder", state.Preferences().Folder)

	return &NoteWriterHandle{
		Writer: notes.NewWriter(vault, ledger.Store, state, log.Component("notes")),
	}, nil
}

// SchedulerHandle wraps the sync scheduler with shutdown capability.
type SchedulerHandle struct {
	*scheduler.Scheduler
}

// Shutdown implements do.Shutdownable.
func (h *SchedulerHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideScheduler provides the sync scheduler and arms its first run.
func ProvideScheduler(i do.Injector) (*SchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	f := do.MustInvoke[*fetcher.Fetcher](i)
	writerHandle := do.MustInvoke[*NoteWriterHandle](i)
	tokens := do.MustInvoke[*tokenstore.Store](i)
	gate := do.MustInvoke[*ratelimit.Gate](i)
	state := do.MustInvoke[*settings.State](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	// A nil *notes.Writer must not become a non-nil interface.
	var writer scheduler.NoteWriter
	if writerHandle.Writer != nil {
		writer = writerHandle.Writer
	}

	sched := scheduler.New(scheduler.Config{
		EmptyCooldown:  cfg.Sync.EmptyCooldown,
		ErrorCooldown:  cfg.Sync.ErrorCooldown,
		PollInterval:   cfg.Sync.PollInterval,
		BypassInterval: cfg.Sync.BypassInterval,
		AutoSync:       state.Preferences().AutoSync,
	}, f, writer, tokens, gate, state, storeHandle.Store, sseHandle.Manager, log.Component("scheduler"))

	sched.Start(context.Background())

	log.Info("Scheduler started",
		"auto_sync", state.Preferences().AutoSync,
		"next_run_at", sched.NextRunAt(),
	)

	return &SchedulerHandle{Scheduler: sched}, nil
}
