package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/longregen/memoir/internal/adapters/circuitbreaker"
	"github.com/longregen/memoir/internal/adapters/http/handlers"
	"github.com/longregen/memoir/internal/adapters/id"
	"github.com/longregen/memoir/internal/adapters/memstore"
	"github.com/longregen/memoir/internal/adapters/metrics"
	"github.com/longregen/memoir/internal/adapters/postgres"
	"github.com/longregen/memoir/internal/application/services"
	"github.com/longregen/memoir/internal/config"
	"github.com/longregen/memoir/internal/llm"
	"github.com/longregen/memoir/internal/platform/logger"
	"github.com/longregen/memoir/internal/ports"
)

// Version information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfg *config.Config

const (
	llmBreakerFailures = 5
	llmBreakerTimeout  = 30 * time.Second
)

// engine is the wired prompt engine shared by serve and expire
type engine struct {
	idGen     ports.IDGenerator
	selector  *services.Selector
	lifecycle *services.LifecycleManager
	dbPing    handlers.Pinger // nil for the memory store
	close     func()
}

func newLogger() (*logger.Logger, error) {
	return logger.New(logger.Options{
		Mode:     cfg.Log.Mode,
		Level:    cfg.Log.Level,
		Redact:   cfg.Log.Redaction,
		HashSalt: cfg.Log.HashSalt,
	})
}

// openStore returns the repository and transaction manager for the configured store
func openStore(ctx context.Context, idGen ports.IDGenerator, migrate bool, log *logger.Logger) (ports.PromptRepository, ports.TransactionManager, *pgxpool.Pool, error) {
	if cfg.UsesMemoryStore() {
		log.Warn("using in-memory store; prompts are lost on restart")
		store := memstore.New(idGen)
		return store, store, nil, nil
	}
	if cfg.Database.PostgresURL == "" {
		return nil, nil, nil, fmt.Errorf("PostgreSQL connection required. Set MEMOIR_POSTGRES_URL")
	}

	log.Info("connecting to PostgreSQL")
	pool, err := postgres.Connect(ctx, cfg.Database.PostgresURL)
	if err != nil {
		return nil, nil, nil, err
	}
	txManager := postgres.NewTransactionManager(pool)
	if migrate {
		applied, err := postgres.Migrate(ctx, txManager)
		if err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Info("database migrated", "applied", len(applied))
	}
	return postgres.NewStore(pool, idGen), txManager, pool, nil
}

func newPromptWriter(log *logger.Logger) ports.PromptWriter {
	templates := services.TemplateWriter{}
	if !cfg.IsLLMConfigured() {
		log.Info("LLM not configured, prompts use templates")
		return templates
	}

	client := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.URL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	metrics.CircuitBreakerState.WithLabelValues("llm").Set(float64(circuitbreaker.StateClosed))
	breaker := circuitbreaker.New(llmBreakerFailures, llmBreakerTimeout,
		circuitbreaker.WithStateChange(func(from, to circuitbreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues("llm").Set(float64(to))
			log.Warn("LLM circuit breaker changed state", "from", from.String(), "to", to.String())
		}),
	)
	log.Info("LLM prompt writer enabled", "url", cfg.LLM.URL, "model", cfg.LLM.Model)
	return services.NewFallbackWriter("llm", llm.NewWriter(client, breaker), templates, log)
}

func buildEngine(ctx context.Context, migrate bool, log *logger.Logger) (*engine, error) {
	idGen := id.New()
	repo, txManager, pool, err := openStore(ctx, idGen, migrate, log)
	if err != nil {
		return nil, err
	}

	validator := services.NewPromptValidator(cfg.Prompts.MaxWords, cfg.Prompts.ForbiddenWords)
	clock := ports.SystemClock{}
	generator := services.NewStoryPromptGenerator(repo, validator, newPromptWriter(log), clock,
		services.GeneratorConfig{
			MaxAttempts: cfg.Prompts.MaxGenerationAttempts,
			Score:       cfg.Prompts.GeneratedPromptScore,
		}, log)
	selector := services.NewSelector(repo, validator, generator, clock, log)
	lifecycle := services.NewLifecycleManager(repo, txManager, selector, idGen, clock,
		services.LifecycleConfig{RetirementThreshold: cfg.Prompts.RetirementThreshold}, log)

	e := &engine{
		idGen:     idGen,
		selector:  selector,
		lifecycle: lifecycle,
		close:     func() {},
	}
	if pool != nil {
		e.dbPing = handlers.PingFunc(pool.Ping)
		e.close = pool.Close
	}
	return e, nil
}

// maskSecret masks a secret string for display
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "(set)"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// boolStatus returns a status string for a boolean
func boolStatus(b bool) string {
	if b {
		return "configured"
	}
	return "not configured"
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
