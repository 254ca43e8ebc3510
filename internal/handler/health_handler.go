package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/catalog"
	"github.com/jkindrix/bluehome/internal/circuitbreaker"
)

// Version is reported by /health. Overridden at build time with -ldflags.
var Version = "1.0.0"

// HealthChecker pings a backing store.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// AIHealthChecker reports whether the LLM client stopped calling upstream.
type AIHealthChecker interface {
	IsCircuitOpen() bool
}

// breakerStats is implemented by LLM clients that expose their breaker.
type breakerStats interface {
	CircuitBreakerStats() circuitbreaker.Stats
}

// CatalogStatusReporter reports the cached listings snapshot.
type CatalogStatusReporter interface {
	Status() catalog.Status
}

// ReadinessGate turns false while the process drains.
type ReadinessGate interface {
	Ready() bool
}

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthHandler serves the probes.
type HealthHandler struct {
	catalog  CatalogStatusReporter
	sessions HealthChecker
	database HealthChecker
	llm      AIHealthChecker
	gate     ReadinessGate
	logger   *zap.Logger
}

// HealthHandlerConfig holds configuration for HealthHandler.
// Nil dependencies are left out of the report.
type HealthHandlerConfig struct {
	Catalog         CatalogStatusReporter
	Sessions        HealthChecker
	Database        HealthChecker
	AIHealthChecker AIHealthChecker
	Readiness       ReadinessGate
	Logger          *zap.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg HealthHandlerConfig) *HealthHandler {
	if cfg.Logger == nil {
		panic("logger is required")
	}
	return &HealthHandler{
		catalog:  cfg.Catalog,
		sessions: cfg.Sessions,
		database: cfg.Database,
		llm:      cfg.AIHealthChecker,
		gate:     cfg.Readiness,
		logger:   cfg.Logger,
	}
}

// RegisterRoutes registers health routes on the router.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReadiness)
	r.Get("/live", h.HandleLiveness)
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status  string                     `json:"status"`
	Version string                     `json:"version,omitempty"`
	Checks  map[string]ComponentHealth `json:"checks,omitempty"`
	Catalog *catalog.Status            `json:"catalog,omitempty"`
}

// ComponentHealth is one entry of HealthResponse.Checks.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// stores are the dependencies a chat turn cannot be answered without.
func (h *HealthHandler) stores() map[string]HealthChecker {
	stores := make(map[string]HealthChecker, 2)
	if h.sessions != nil {
		stores["session_store"] = h.sessions
	}
	if h.database != nil {
		stores["database"] = h.database
	}
	return stores
}

func (h *HealthHandler) catalogHealth() (ComponentHealth, *catalog.Status) {
	status := h.catalog.Status()
	switch {
	case !status.Loaded:
		return ComponentHealth{Status: statusDegraded, Message: "catalog not loaded yet"}, &status
	case status.Stale:
		h.logger.Warn("catalog is serving a stale snapshot", zap.Int("size", status.Size))
		return ComponentHealth{
			Status:  statusDegraded,
			Message: fmt.Sprintf("serving stale snapshot of %d listing(s)", status.Size),
		}, &status
	}
	return ComponentHealth{Status: statusHealthy, Message: fmt.Sprintf("%d listing(s)", status.Size)}, &status
}

// HandleHealth reports every dependency. A failed store makes the service
// unhealthy (503); catalog and LLM problems only degrade it.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Version: Version, Checks: make(map[string]ComponentHealth)}
	worst := statusHealthy

	for name, store := range h.stores() {
		if err := store.Ping(ctx); err != nil {
			h.logger.Error("health check failed", zap.String("component", name), zap.Error(err))
			resp.Checks[name] = ComponentHealth{Status: statusUnhealthy, Message: err.Error()}
			worst = statusUnhealthy
			continue
		}
		resp.Checks[name] = ComponentHealth{Status: statusHealthy}
	}

	var degraded []ComponentHealth
	if h.catalog != nil {
		c, snapshot := h.catalogHealth()
		resp.Checks["catalog"] = c
		resp.Catalog = snapshot
		degraded = append(degraded, c)
	}
	if h.llm != nil {
		c := ComponentHealth{Status: statusHealthy}
		if h.llm.IsCircuitOpen() {
			h.logger.Warn("LLM circuit breaker is open")
			c = ComponentHealth{Status: statusDegraded, Message: "circuit breaker open, fallback replies only"}
			if bs, ok := h.llm.(breakerStats); ok {
				st := bs.CircuitBreakerStats()
				c.Message = fmt.Sprintf("circuit breaker open since %s, %d call(s) rejected",
					st.Since.UTC().Format(time.RFC3339), st.Rejected)
			}
		}
		resp.Checks["llm"] = c
		degraded = append(degraded, c)
	}
	for _, c := range degraded {
		if c.Status == statusDegraded && worst == statusHealthy {
			worst = statusDegraded
		}
	}

	code := http.StatusOK
	switch worst {
	case statusUnhealthy:
		resp.Status = statusUnhealthy
		code = http.StatusServiceUnavailable
	case statusDegraded:
		resp.Status = statusDegraded
	}
	writeJSON(w, r, code, resp, h.logger)
}

// HandleReadiness answers 503 while draining or when a store is unreachable.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	if h.gate != nil && !h.gate.Ready() {
		http.Error(w, "draining", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, store := range h.stores() {
		if err := store.Ping(ctx); err != nil {
			h.logger.Error("readiness check failed", zap.String("component", name), zap.Error(err))
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// HandleLiveness always answers 200.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
