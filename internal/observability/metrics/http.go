package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type HTTPServerMetrics struct {
	registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	analysesTotal    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	uploadBytes      *prometheus.HistogramVec
	rejectedTotal    *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	r := newRegistry()
	return &HTTPServerMetrics{
		registry: r,

		requestTotal: r.counter("http", "requests_total",
			"Total HTTP requests processed.", "service", "method", "path", "status"),
		requestDuration: r.histogram("http", "request_duration_seconds",
			"HTTP request duration in seconds.", prometheus.DefBuckets, "service", "method", "path"),
		requestInFlight: r.gauge("http", "in_flight_requests",
			"Number of in-flight HTTP requests.", service),

		analysesTotal: r.counter("analysis", "total",
			"Synchronous analyses by outcome (risk status or error kind).", "service", "outcome"),
		analysisDuration: r.histogram("analysis", "duration_seconds",
			"Synchronous analysis duration in seconds.", analysisBuckets, "service"),
		uploadBytes: r.histogram("http", "upload_bytes",
			"Size of accepted document uploads.", uploadBuckets, "service"),
		rejectedTotal: r.counter("http", "rejected_total",
			"Requests rejected by traffic control.", "service", "reason"),
	}
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := routePattern(r)
		m.requestTotal.WithLabelValues(service, r.Method, path, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routePattern prefers the matched chi pattern so path parameters do not
// explode label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return normalizePath(r.URL.Path)
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{documentID}/analysis"
	case strings.HasPrefix(path, "/v1/users/"):
		return "/v1/users/{userID}"
	default:
		return path
	}
}

// RecordAnalysis counts one synchronous analysis; outcome is the risk status
// on success or the error kind on failure.
func (m *HTTPServerMetrics) RecordAnalysis(service, outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.analysesTotal.WithLabelValues(service, outcome).Inc()
	m.analysisDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) ObserveUpload(service string, size int64) {
	if size < 0 {
		return
	}
	m.uploadBytes.WithLabelValues(service).Observe(float64(size))
}

func (m *HTTPServerMetrics) RecordRejected(service, reason string) {
	m.rejectedTotal.WithLabelValues(service, reason).Inc()
}
