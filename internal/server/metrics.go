// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the route pattern rather than the raw URL path, keeping cardinality
	// bounded when document IDs appear in the path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, route pattern, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// documentsAddedTotal counts documents inserted via the API, partitioned
	// by source ("single", "bulk").
	documentsAddedTotal *prometheus.CounterVec

	// searchesTotal counts completed GET /search requests, partitioned by
	// outcome: "ok" or "error".
	searchesTotal *prometheus.CounterVec

	// chatRequestsTotal counts completed POST /chat requests, partitioned by
	// outcome: "ok", "degraded", or "error".
	chatRequestsTotal *prometheus.CounterVec

	// chatTokensTotal sums the completion token usage reported by the chat
	// backend.
	chatTokensTotal prometheus.Counter
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragd",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),

		documentsAddedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "documents",
			Name:      "added_total",
			Help:      "Total number of documents inserted via the API, partitioned by source.",
		}, []string{"source"}),

		searchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of search requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		chatRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total number of chat requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		chatTokensTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "chat",
			Name:      "tokens_total",
			Help:      "Total completion tokens reported by the chat backend.",
		}),
	}
}

// middleware instruments every request with the request counter and latency
// histogram. The handler label is the mux route pattern when one matches,
// falling back to the raw path for unmatched requests. The pattern is looked
// up on mux directly because the middleware runs outside the mux and never
// sees the matched request copy.
func (m *serverMetrics) middleware(mux *http.ServeMux, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		_, handler := mux.Handler(r)
		if handler == "" {
			handler = r.URL.Path
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, handler, strconv.Itoa(rw.status)).Inc()
		m.httpDurationSeconds.WithLabelValues(r.Method, handler).Observe(elapsed.Seconds())
	})
}
