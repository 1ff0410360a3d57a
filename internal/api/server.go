// Package api provides the loopback control API and the OAuth redirect
// receiver for the vaultmark daemon.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vaultmark/vaultmark/internal/ratelimit"
	"github.com/vaultmark/vaultmark/internal/sse"
	"github.com/vaultmark/vaultmark/internal/validation"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// Server holds dependencies for HTTP handlers.
type Server struct {
	services   Services
	router     *chi.Mux
	api        huma.API
	sseHandler http.Handler
	limiter    *ratelimit.Throttle
	validator  *validation.Validator
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLimiter overrides the inbound request limiter.
func WithLimiter(l *ratelimit.Throttle) Option {
	return func(s *Server) { s.limiter = l }
}

// NewServer creates the HTTP server with all routes configured.
// sseHandler serves the event stream; nil disables the route.
func NewServer(services Services, sseHandler *sse.Handler, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()

	humaConfig := huma.DefaultConfig("vaultmark control API", Version)
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s := &Server{
		services:  services,
		router:    router,
		validator: validation.New(),
		logger:    logger,
	}
	if sseHandler != nil {
		s.sseHandler = sseHandler
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewThrottle(10, 20, 10*time.Minute)
	}

	s.setupMiddleware()

	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerSyncRoutes()
	s.registerWebRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases the inbound limiter.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  func(_ *http.Request, origin string) bool { return isLoopbackOrigin(origin) },
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Last-Event-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(RateLimitMiddleware(s.limiter, s.logger))
}
