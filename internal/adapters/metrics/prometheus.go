package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memoir_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "memoir_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// PromptSelections counts prompts handed out; source is "active", "generated" or "fallback"
	PromptSelections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memoir_prompt_selections_total",
		Help: "Prompts returned by the selector",
	}, []string{"tier", "source"})

	PromptSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memoir_prompt_skips_total",
		Help: "Skip requests applied to active prompts",
	})

	PromptRetirements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memoir_prompt_retirements_total",
		Help: "Prompts moved to history",
	}, []string{"outcome"})

	GenerationFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memoir_generation_fallbacks_total",
		Help: "Story prompt generation that degraded to the decade prompt",
	}, []string{"reason"})

	WriterFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memoir_prompt_writer_failures_total",
		Help: "Prompt writer calls that failed and fell back to templates",
	}, []string{"writer"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "memoir_circuit_breaker_state",
		Help: "Circuit breaker state: 0 closed, 1 open, 2 half open",
	}, []string{"name"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "memoir_llm_request_duration_seconds",
		Help:    "LLM request duration",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"model", "status"})
)
