package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "credit_engine"

// Metrics stores Prometheus collectors used by the API, the orchestrator and the event worker.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDuration       *prometheus.HistogramVec
	allocationsTotal          *prometheus.CounterVec
	allocationErrorsTotal     *prometheus.CounterVec
	allocationDuration        prometheus.Histogram
	submissionsInflight       prometheus.Gauge
	rosterValidationsTotal    *prometheus.CounterVec
	budgetCacheLookupsTotal   *prometheus.CounterVec
	budgetEventsConsumedTotal *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		allocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "allocations_total",
				Help:      "Total number of allocation submissions grouped by outcome.",
			},
			[]string{"outcome"},
		),
		allocationErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "allocation_errors_total",
				Help:      "Total number of failed allocations grouped by error reason.",
			},
			[]string{"reason"},
		),
		allocationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "allocation_duration_seconds",
				Help:      "Enterprise API allocation call duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		submissionsInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "submissions_inflight",
				Help:      "Current number of allocation submissions awaiting a response.",
			},
		),
		rosterValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "roster_validations_total",
				Help:      "Total number of roster validations grouped by result.",
			},
			[]string{"result"},
		),
		budgetCacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "budget_cache_lookups_total",
				Help:      "Total number of budget cache lookups grouped by hit or miss.",
			},
			[]string{"result"},
		),
		budgetEventsConsumedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "budget_events_consumed_total",
				Help:      "Total number of budget events consumed grouped by type.",
			},
			[]string{"type"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.allocationsTotal,
		m.allocationErrorsTotal,
		m.allocationDuration,
		m.submissionsInflight,
		m.rosterValidationsTotal,
		m.budgetCacheLookupsTotal,
		m.budgetEventsConsumedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncAllocation(outcome string) {
	if m == nil {
		return
	}
	m.allocationsTotal.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncAllocationError(reason string) {
	if m == nil {
		return
	}
	m.allocationErrorsTotal.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *Metrics) ObserveAllocationDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.allocationDuration.Observe(seconds)
}

func (m *Metrics) IncSubmissionsInFlight() {
	if m == nil {
		return
	}
	m.submissionsInflight.Inc()
}

func (m *Metrics) DecSubmissionsInFlight() {
	if m == nil {
		return
	}
	m.submissionsInflight.Dec()
}

func (m *Metrics) IncRosterValidation(result string) {
	if m == nil {
		return
	}
	m.rosterValidationsTotal.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) IncBudgetCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.budgetCacheLookupsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncBudgetEventConsumed(eventType string) {
	if m == nil {
		return
	}
	m.budgetEventsConsumedTotal.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
