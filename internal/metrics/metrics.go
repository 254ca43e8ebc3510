// Package metrics provides Prometheus metrics collection for the application.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values for metrics.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeTimeout     = "timeout"
)

// Metrics holds all Prometheus metrics for the application.
// Every Record/Set method is safe to call on a nil *Metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPRequestDuration  *prometheus.HistogramVec

	// Conversation metrics
	MessagesTotal *prometheus.CounterVec
	LeadsTotal    *prometheus.CounterVec

	// Catalog metrics
	CatalogFetchesTotal  *prometheus.CounterVec
	CatalogFetchDuration prometheus.Histogram
	CatalogProperties    prometheus.Gauge
	CatalogStaleServes   prometheus.Counter

	// LLM metrics
	LLMCallsTotal   *prometheus.CounterVec
	LLMCallDuration prometheus.Histogram

	// Session store and delivery
	SessionStoreErrors *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec

	CircuitBreakerState *prometheus.GaugeVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBQueryDuration    *prometheus.HistogramVec
	DBQueryErrors      *prometheus.CounterVec

	RateLimitHitsTotal *prometheus.CounterVec

	registry prometheus.Gatherer
}

// NewMetrics registers the collectors on the default registry.
func NewMetrics() *Metrics {
	return build(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewMetricsWithRegistry registers the collectors on reg. Used in tests.
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	return build(reg, reg)
}

const namespace = "bluehome"

func build(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return f.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: buckets}, labels)
	}

	return &Metrics{
		HTTPRequestsTotal:    counter("http_requests_total", "HTTP requests by method, route and status", "method", "path", "status"),
		HTTPRequestDuration:  histogram("http_request_duration_seconds", "HTTP request latency", prometheus.DefBuckets, "method", "path"),
		HTTPRequestsInFlight: gauge("http_requests_in_flight", "HTTP requests being served"),

		MessagesTotal: counter("messages_total", "Chat messages handled, by resolved intent", "intent"),
		LeadsTotal:    counter("leads_total", "Leads captured, by kind (consignacion, visita, asesor)", "kind"),

		CatalogFetchesTotal: counter("catalog_fetches_total", "Catalog source loads by outcome", "outcome"),
		CatalogFetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_fetch_duration_seconds",
			Help:      "Catalog source load latency",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		CatalogProperties: gauge("catalog_properties", "Listings in the current catalog snapshot"),
		CatalogStaleServes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_stale_serves_total",
			Help:      "Stale snapshots served after a failed reload",
		}),

		LLMCallsTotal: counter("llm_calls_total", "LLM completion calls by outcome", "outcome"),
		LLMCallDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "LLM completion latency",
			Buckets:   []float64{.25, .5, 1, 2, 5, 10, 20, 30},
		}),

		SessionStoreErrors: counter("session_store_errors_total", "Session store failures by operation", "operation"),
		NotificationsTotal: counter("notifications_total", "Lead notifications by channel and outcome", "channel", "outcome"),

		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"service"}),

		DBConnectionsOpen:  gauge("db_connections_open", "Open database connections"),
		DBConnectionsInUse: gauge("db_connections_in_use", "Database connections checked out of the pool"),
		DBQueryDuration: histogram("db_query_duration_seconds", "Database query latency",
			[]float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}, "operation"),
		DBQueryErrors: counter("db_query_errors_total", "Failed database queries", "operation"),

		RateLimitHitsTotal: counter("rate_limit_hits_total", "Requests rejected by a rate limiter", "limiter"),

		registry: gatherer,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency labeled by the chi route
// pattern, so path parameters and unknown paths do not create new series.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "other"
}

// RecordMessage counts a handled chat message.
func (m *Metrics) RecordMessage(intent string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(intent).Inc()
}

// RecordLead counts a captured lead.
func (m *Metrics) RecordLead(kind string) {
	if m == nil {
		return
	}
	m.LeadsTotal.WithLabelValues(kind).Inc()
}

// RecordCatalogFetch records a catalog load. size is ignored on failure.
func (m *Metrics) RecordCatalogFetch(success bool, duration time.Duration, size int) {
	if m == nil {
		return
	}
	outcome := OutcomeFailure
	if success {
		outcome = OutcomeSuccess
		m.CatalogProperties.Set(float64(size))
	}
	m.CatalogFetchesTotal.WithLabelValues(outcome).Inc()
	m.CatalogFetchDuration.Observe(duration.Seconds())
}

// RecordCatalogStale counts a stale snapshot being served.
func (m *Metrics) RecordCatalogStale() {
	if m == nil {
		return
	}
	m.CatalogStaleServes.Inc()
}

// RecordLLMCall records an LLM completion call.
func (m *Metrics) RecordLLMCall(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.LLMCallsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeCircuitOpen {
		m.LLMCallDuration.Observe(duration.Seconds())
	}
}

// RecordSessionStoreError counts a failed session store operation.
func (m *Metrics) RecordSessionStoreError(operation string) {
	if m == nil {
		return
	}
	m.SessionStoreErrors.WithLabelValues(operation).Inc()
}

// RecordNotification records an outbound lead notification.
func (m *Metrics) RecordNotification(channel string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.NotificationsTotal.WithLabelValues(channel, outcome).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state for a service.
// State: 0=closed, 1=half-open, 2=open
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// UpdateDBConnections updates database connection metrics.
func (m *Metrics) UpdateDBConnections(open, inUse int) {
	if m == nil {
		return
	}
	m.DBConnectionsOpen.Set(float64(open))
	m.DBConnectionsInUse.Set(float64(inUse))
}

// RecordDBQuery records a database query.
func (m *Metrics) RecordDBQuery(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(limiter string) {
	if m == nil {
		return
	}
	m.RateLimitHitsTotal.WithLabelValues(limiter).Inc()
}
