package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// =============================================================================
// METRICS
// =============================================================================

// Metrics owns a private registry so several routers (tests) can coexist.
type Metrics struct {
	registry        *prometheus.Registry
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	distributions   *prometheus.CounterVec
	auditWarnings   prometheus.Gauge
}

// NewMetrics creates and registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "requests_total",
				Help: "How many HTTP requests processed, partitioned by status code, method and route.",
			},
			[]string{"code", "method", "url"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "request_duration_seconds",
				Help: "The HTTP request latencies in seconds.",
			},
			[]string{"code", "method", "url"},
		),
		distributions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_distributions_total",
				Help: "Distributions run, partitioned by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		),
		auditWarnings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "budget_audit_warnings",
			Help: "Soft-invariant warnings found by the last balance audit.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestCount,
		m.requestDuration,
		m.distributions,
		m.auditWarnings,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDistribution counts one distribution attempt.
func (m *Metrics) ObserveDistribution(strategy string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	m.distributions.WithLabelValues(strategy, outcome).Inc()
}

// SetAuditWarnings records the size of the latest audit report.
func (m *Metrics) SetAuditWarnings(n int) {
	m.auditWarnings.Set(float64(n))
}

// Middleware records request count and latency. The route pattern is used
// as the url label to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := strconv.Itoa(statusOf(ww))
		url := routePattern(r)
		m.requestDuration.WithLabelValues(status, r.Method, url).Observe(time.Since(start).Seconds())
		m.requestCount.WithLabelValues(status, r.Method, url).Inc()
	})
}

// =============================================================================
// LOGGING
// =============================================================================

// requestLogger logs one line per request through the global zerolog logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := statusOf(ww)
		event := log.Info()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}
		event.
			Str("request-id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func statusOf(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
