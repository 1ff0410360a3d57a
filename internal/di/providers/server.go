package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/vaultmark/vaultmark/internal/api"
	"github.com/vaultmark/vaultmark/internal/config"
	"github.com/vaultmark/vaultmark/internal/logger"
	"github.com/vaultmark/vaultmark/internal/sse"
)

// shutdownTimeout bounds the graceful stop of the HTTP server and the
// SSE event drain.
const shutdownTimeout = 30 * time.Second

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.api.Close()
	return err
}

// ProvideHTTPServer provides the loopback control API server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	flow := do.MustInvoke[*AuthFlowHandle](i)
	sched := do.MustInvoke[*SchedulerHandle](i)

	sseHandler := sse.NewHandler(sseHandle.Manager, log.Component("sse"))

	services := api.Services{
		Auth:    flow.Flow,
		Sync:    sched.Scheduler,
		History: storeHandle.Store,
		Events:  sseHandle.Manager,
	}

	handler := api.NewServer(services, sseHandler, log.Component("api"))

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Control API running", "url", cfg.Server.BaseURL())

	return &HTTPServerHandle{Server: srv, api: handler}, nil
}
