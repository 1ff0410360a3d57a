package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/vaultmark/vaultmark/internal/config"
	"github.com/vaultmark/vaultmark/internal/domain"
	"github.com/vaultmark/vaultmark/internal/logger"
	"github.com/vaultmark/vaultmark/internal/settings"
	"github.com/vaultmark/vaultmark/internal/sse"
	"github.com/vaultmark/vaultmark/internal/store"
	"github.com/vaultmark/vaultmark/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Component("sse"))

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the settings store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the Badger settings and run history store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Data.BasePath, "db")
	db, err := store.New(dbPath, log.Component("store"))
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// LedgerHandle wraps the processed-bookmark ledger with shutdown capability.
type LedgerHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *LedgerHandle) Shutdown() error {
	return h.Close()
}

// ProvideLedger provides the SQLite ledger of imported bookmarks.
func ProvideLedger(i do.Injector) (*LedgerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := filepath.Join(cfg.Data.BasePath, "ledger.db")
	ledger, err := sqlite.Open(path, log.Component("ledger"))
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	count, err := ledger.ProcessedCount(ctx)
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}
	lastImport, err := ledger.GetLedgerCheckpoint(ctx)
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}
	log.Info("Ledger opened", "path", path, "processed", count, "last_import", lastImport)

	return &LedgerHandle{Store: ledger}, nil
}

// ProvideSettingsState loads the settings blob, seeding it from the
// configuration on first run.
func ProvideSettingsState(i do.Injector) (*settings.State, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	seed := domain.NewSettings(domain.Preferences{
		StorageMethod:    cfg.Vault.StorageMethod,
		Folder:           cfg.Vault.Folder,
		FilenameTemplate: cfg.Vault.FilenameTemplate,
		NoteTemplate:     cfg.Vault.NoteTemplate,
		AutoSync:         cfg.Sync.AutoSync,
	}, cfg.Sync.RateWindow)
	seed.Rate.BypassEnabled = cfg.Sync.Bypass

	return settings.Load(context.Background(), storeHandle.Store, seed)
}
