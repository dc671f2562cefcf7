package http

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "platereport"

var (
	metricsRegistry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests handled by this app.",
	}, []string{"method", "path", "status"})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
	inFlightRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "http_in_flight_requests",
		Help:      "In-flight HTTP requests currently served by this app.",
	})
	sourceQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "source_queries_total",
		Help:      "Data source operations by result.",
	}, []string{"source", "operation", "result"})
	sourceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "source_query_duration_seconds",
		Help:      "Data source operation latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source", "operation"})
	reportRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "report_renders_total",
		Help:      "Rendered reports by format and status.",
	}, []string{"format", "status"})
	reportDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "report_render_duration_seconds",
		Help:      "Report render latency by format.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"format"})
	liveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "live_sessions",
		Help:      "Open live report sessions.",
	})
	liveEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "live_events_total",
		Help:      "Client events received over live sessions.",
	}, []string{"type"})
)

func init() {
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests, httpDuration, inFlightRequests,
		sourceQueries, sourceDuration,
		reportRuns, reportDuration,
		liveSessions, liveEvents,
	)
}

func metricsHandler() http.Handler {
	return promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func observabilityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		inFlightRequests.Inc()
		defer inFlightRequests.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := normalizeMetricPath(r.URL.Path)
		recordHTTPMetric(r.Method, route, rec.status, time.Since(start).Seconds())
	})
}

// normalizeMetricPath keeps the path label bounded.
func normalizeMetricPath(path string) string {
	switch path {
	case "/", "/report.html", "/metrics", "/health", "/ready",
		"/api/v1/plates", "/api/v1/plates/table", "/api/v1/coverage", "/api/v1/layout",
		"/api/v1/export.xlsx", "/api/v1/live", "/api/v1/reload", "/api/v1/status/source":
		return path
	}
	if strings.HasPrefix(path, "/api/") {
		return "/api/other"
	}
	return "other"
}

func recordHTTPMetric(method, path string, status int, durationSeconds float64) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

func recordDBQuery(connector, operation string, durationSeconds float64, err error) {
	if connector == "" || operation == "" {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	sourceQueries.WithLabelValues(connector, operation, result).Inc()
	sourceDuration.WithLabelValues(connector, operation).Observe(durationSeconds)
}

func recordReportRun(format, status string, durationSeconds float64) {
	status = strings.TrimSpace(strings.ToLower(status))
	if status == "" {
		status = "unknown"
	}
	reportRuns.WithLabelValues(format, status).Inc()
	reportDuration.WithLabelValues(format).Observe(durationSeconds)
}

func recordLiveEvent(kind string) {
	switch kind {
	case eventKeyup, eventChange, eventClear, eventPage, eventClick:
	default:
		kind = "unknown"
	}
	liveEvents.WithLabelValues(kind).Inc()
}
