package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/longregen/memoir/internal/adapters/auth"
	"github.com/longregen/memoir/internal/adapters/http"
	"github.com/longregen/memoir/internal/adapters/http/handlers"
	"github.com/longregen/memoir/internal/adapters/tracing"
	"github.com/longregen/memoir/internal/config"
	"github.com/longregen/memoir/internal/platform/logger"
	"github.com/longregen/memoir/internal/scheduler"
)

// serveCmd starts the HTTP API server
func serveCmd() *cobra.Command {
	var (
		store       string
		migrate     bool
		traceOutput string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the Memoir HTTP API server.

Endpoints:
  GET  /api/prompts/next    next prompt for the authenticated user
  POST /api/prompts/skip    record a skip, retiring the prompt at the threshold
  POST /api/prompts/answer  archive an answered prompt

Required configuration:
  - JWT secret (MEMOIR_JWT_SECRET)
  - PostgreSQL database (MEMOIR_POSTGRES_URL), unless --store=memory

Optional:
  - LLM prompt writer (MEMOIR_LLM_URL)
  - Expiry sweep schedule (MEMOIR_EXPIRE_SCHEDULE)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if store != "" {
				if store != config.StoreMemory && store != config.StorePostgres {
					return fmt.Errorf("unknown store %q", store)
				}
				cfg.Database.Store = store
			}
			return runServer(cmd.Context(), migrate, traceOutput)
		},
	}
	cmd.Flags().StringVar(&store, "store", "", "override the configured store (postgres or memory)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply database migrations before serving")
	cmd.Flags().StringVar(&traceOutput, "trace-output", "", "write spans to this file, or - for stderr")
	return cmd
}

// runServer initializes and starts the HTTP API server
func runServer(ctx context.Context, migrate bool, traceOutput string) error {
	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting Memoir API server",
		"version", version,
		"addr", cfg.Addr(),
		"store", cfg.Database.Store,
		"llm", boolStatus(cfg.IsLLMConfigured()),
	)

	if traceOutput != "" {
		shutdownTracer, err := initTracing(traceOutput, log)
		if err != nil {
			log.Warn("failed to initialize tracing", "error", err)
		} else {
			defer shutdownTracer()
		}
	}

	eng, err := buildEngine(ctx, migrate, log)
	if err != nil {
		return err
	}
	defer eng.close()

	health := handlers.NewHealthHandler(version)
	if eng.dbPing != nil {
		health.WithCheck("database", eng.dbPing, true)
	}

	server := http.NewServer(cfg, http.Deps{
		Verifier:  auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Selector:  eng.selector,
		Lifecycle: eng.lifecycle,
		IDGen:     eng.idGen,
		Health:    health,
		Log:       log,
	})

	sweeper := scheduler.New(eng.lifecycle, nil, cfg.Prompts.ExpireBatchSize, log)
	if cfg.Prompts.ExpireSchedule != "" {
		if err := sweeper.Start(ctx, cfg.Prompts.ExpireSchedule); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		sweeper.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func initTracing(output string, log *logger.Logger) (func(), error) {
	var w io.Writer = os.Stderr
	var file *os.File
	if output != "-" {
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace output: %w", err)
		}
		w, file = f, f
	}

	shutdown, err := tracing.InitTracer("memoir-api", version, w)
	if err != nil {
		if file != nil {
			file.Close()
		}
		return nil, err
	}
	log.Info("OpenTelemetry tracing initialized", "output", output)

	return func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn("error shutting down tracer", "error", err)
		}
		if file != nil {
			file.Close()
		}
	}, nil
}
