package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is anything whose reachability the detailed health check reports
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	version string
	timeout time.Duration
	checks  map[string]Pinger
	// critical names the checks whose failure makes the service unhealthy rather than degraded
	critical map[string]bool
}

func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:  version,
		timeout:  5 * time.Second,
		checks:   make(map[string]Pinger),
		critical: make(map[string]bool),
	}
}

// WithCheck registers a dependency check
func (h *HealthHandler) WithCheck(name string, p Pinger, critical bool) *HealthHandler {
	h.checks[name] = p
	h.critical[name] = critical
	return h
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type DetailedHealthResponse struct {
	Status   string                   `json:"status"`
	Version  string                   `json:"version"`
	Services map[string]ServiceHealth `json:"services"`
}

type ServiceHealth struct {
	Status    string  `json:"status"`
	LatencyMs *int64  `json:"latency_ms,omitempty"`
	Error     *string `json:"error,omitempty"`
}

// Handle provides a basic health check endpoint
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{Status: "ok", Version: h.version}, http.StatusOK)
}

// HandleDetailed runs every registered check
func (h *HealthHandler) HandleDetailed(w http.ResponseWriter, r *http.Request) {
	response := DetailedHealthResponse{
		Version:  h.version,
		Services: make(map[string]ServiceHealth, len(h.checks)),
	}
	for name, p := range h.checks {
		response.Services[name] = h.check(r.Context(), p)
	}
	response.Status = h.calculateOverallStatus(response.Services)

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	respondJSON(w, response, statusCode)
}

func (h *HealthHandler) check(ctx context.Context, p Pinger) ServiceHealth {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	err := p.Ping(checkCtx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		errMsg := err.Error()
		return ServiceHealth{Status: "unhealthy", LatencyMs: &latency, Error: &errMsg}
	}
	return ServiceHealth{Status: "healthy", LatencyMs: &latency}
}

func (h *HealthHandler) calculateOverallStatus(services map[string]ServiceHealth) string {
	degraded := false
	for name, service := range services {
		if service.Status != "unhealthy" {
			continue
		}
		if h.critical[name] {
			return "unhealthy"
		}
		degraded = true
	}
	if degraded {
		return "degraded"
	}
	return "healthy"
}
