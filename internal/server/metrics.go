package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trialdash_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trialdash_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trialdash_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trialdash_pipeline_runs_total",
			Help: "Total number of dashboard recomputations",
		},
		[]string{"status"},
	)

	pipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trialdash_pipeline_run_duration_seconds",
			Help:    "Duration of dashboard recomputations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
	)

	filteredRows = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trialdash_filtered_rows",
			Help:    "Rows admitted by the filter selection per recomputation",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	datasetRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trialdash_dataset_rows",
			Help: "Rows in the cleaned dataset",
		},
	)
)

// metricsMiddleware records request counts and durations by route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			path = rctx.RoutePattern()
		}
		if path == "" {
			path = r.URL.Path
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// recordPipelineRun records metrics for one recomputation.
func recordPipelineRun(duration time.Duration, rows int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	pipelineRunsTotal.WithLabelValues(status).Inc()
	pipelineRunDuration.Observe(duration.Seconds())
	if err == nil {
		filteredRows.Observe(float64(rows))
	}
}
