package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/longregen/memoir/internal/adapters/http/handlers"
	"github.com/longregen/memoir/internal/adapters/http/middleware"
	"github.com/longregen/memoir/internal/config"
	"github.com/longregen/memoir/internal/platform/logger"
	"github.com/longregen/memoir/internal/ports"
)

// Deps are the collaborators the HTTP surface needs
type Deps struct {
	Verifier  ports.TokenVerifier
	Selector  ports.PromptSelector
	Lifecycle ports.PromptLifecycle
	IDGen     ports.IDGenerator
	Health    *handlers.HealthHandler
	Log       *logger.Logger
}

type Server struct {
	config     *config.Config
	deps       Deps
	router     *chi.Mux
	httpServer *http.Server
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.Health == nil {
		deps.Health = handlers.NewHealthHandler("")
	}
	s := &Server{config: cfg, deps: deps}
	s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID(s.deps.IDGen))
	r.Use(middleware.Tracing("memoir-api", r))
	r.Use(middleware.Logger(s.deps.Log))
	r.Use(middleware.Recovery(s.deps.Log))
	r.Use(middleware.CORS(s.config.Server.CORSOrigins))
	r.Use(middleware.Metrics)

	r.Get("/health", s.deps.Health.Handle)
	r.Get("/health/detailed", s.deps.Health.HandleDetailed)
	r.Handle("/metrics", promhttp.Handler())

	prompts := handlers.NewPromptsHandler(s.deps.Selector, s.deps.Lifecycle, s.deps.Log)
	configHandler := handlers.NewConfigHandler(s.config)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(s.deps.Verifier, s.deps.Log))

		r.Get("/config", configHandler.GetPublicConfig)
		r.Get("/prompts/next", prompts.Next)
		r.Post("/prompts/skip", prompts.Skip)
		r.Post("/prompts/answer", prompts.Answer)
	})

	s.router = r
}

// Start blocks serving HTTP until Stop is called or the listener fails
func (s *Server) Start() error {
	s.deps.Log.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop(ctx context.Context) error {
	s.deps.Log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *chi.Mux {
	return s.router
}
