// Package di provides dependency injection configuration for the vaultmark daemon.
package di

import (
	"github.com/samber/do/v2"

	"github.com/vaultmark/vaultmark/internal/config"
	"github.com/vaultmark/vaultmark/internal/di/providers"
	"github.com/vaultmark/vaultmark/internal/fetcher"
	"github.com/vaultmark/vaultmark/internal/logger"
	"github.com/vaultmark/vaultmark/internal/ratelimit"
	"github.com/vaultmark/vaultmark/internal/settings"
	"github.com/vaultmark/vaultmark/internal/tokenstore"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideLedger)
	do.Provide(injector, providers.ProvideSettingsState)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenStore)
	do.Provide(injector, providers.ProvideRateGate)
	do.Provide(injector, providers.ProvideAuthFlow)

	// Sync pipeline
	do.Provide(injector, providers.ProvideXAPIClient)
	do.Provide(injector, providers.ProvideFetcher)
	do.Provide(injector, providers.ProvideNoteWriter)
	do.Provide(injector, providers.ProvideScheduler)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services. The scheduler arms its first run and
// the control API starts listening.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.LedgerHandle](injector)
	_ = do.MustInvoke[*settings.State](injector)
	_ = do.MustInvoke[*tokenstore.Store](injector)
	_ = do.MustInvoke[*ratelimit.Gate](injector)
	_ = do.MustInvoke[*providers.AuthFlowHandle](injector)
	_ = do.MustInvoke[*providers.XAPIClientHandle](injector)
	_ = do.MustInvoke[*fetcher.Fetcher](injector)
	_ = do.MustInvoke[*providers.NoteWriterHandle](injector)
	_ = do.MustInvoke[*providers.SchedulerHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
