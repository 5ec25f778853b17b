package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the HTTP surface and the
// stock domain. It implements the observer interfaces of the ledger,
// intake and webhook packages.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	movementsTotal     *prometheus.CounterVec
	duplicatesTotal    prometheus.Counter
	shortfallClamps    prometheus.Counter
	intakeLinesTotal   *prometheus.CounterVec
	webhooksTotal      *prometheus.CounterVec
	unmappedItemsTotal prometheus.Counter
}

// NewMetrics initialises the registry and all collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blankstock_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blankstock_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blankstock_movements_total",
		Help: "Ledger movements appended, by kind.",
	}, []string{"kind"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blankstock_duplicate_movements_total",
		Help: "Movement posts rejected by the dedup key.",
	})
	clamps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blankstock_shortfall_clamps_total",
		Help: "Order consumptions clamped at zero on-hand.",
	})
	intakeLines := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blankstock_intake_lines_total",
		Help: "Order lines by intake outcome.",
	}, []string{"status"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blankstock_webhook_requests_total",
		Help: "Webhook deliveries by resulting action.",
	}, []string{"action"})
	unmapped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blankstock_unmapped_items_total",
		Help: "Order lines that matched no mapping rule.",
	})
	registry.MustRegister(requests, duration, movements, duplicates, clamps, intakeLines, webhooks, unmapped)
	return &Metrics{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:      requests,
		requestDuration:    duration,
		movementsTotal:     movements,
		duplicatesTotal:    duplicates,
		shortfallClamps:    clamps,
		intakeLinesTotal:   intakeLines,
		webhooksTotal:      webhooks,
		unmappedItemsTotal: unmapped,
	}
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for extra collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// MovementRecorded counts a committed ledger movement.
func (m *Metrics) MovementRecorded(kind string) {
	if m != nil {
		m.movementsTotal.WithLabelValues(kind).Inc()
	}
}

// ShortfallClamped counts an order consumption clamped at zero.
func (m *Metrics) ShortfallClamped(sku string, shortfall int) {
	if m != nil {
		m.shortfallClamps.Inc()
	}
}

// LineProcessed counts an intake line outcome.
func (m *Metrics) LineProcessed(status string) {
	if m == nil {
		return
	}
	m.intakeLinesTotal.WithLabelValues(status).Inc()
	switch status {
	case "unmapped":
		m.unmappedItemsTotal.Inc()
	case "duplicate":
		m.duplicatesTotal.Inc()
	}
}

// WebhookHandled counts a webhook delivery by resulting action.
func (m *Metrics) WebhookHandled(action string) {
	if m != nil {
		m.webhooksTotal.WithLabelValues(action).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
