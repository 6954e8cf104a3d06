package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatchedRoute = "unmatched"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "factory_http_requests_total",
			Help: "HTTP requests handled, by route pattern and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "factory_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	reportsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "factory_failure_reports_created_total",
		Help: "Failure reports created.",
	})

	statusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "factory_report_status_transitions_total",
			Help: "Failure report status changes, by target status.",
		},
		[]string{"status"},
	)

	uploadRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "factory_upload_rejections_total",
			Help: "Rejected uploads, by rejection kind.",
		},
		[]string{"kind"},
	)

	uploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "factory_uploaded_bytes_total",
		Help: "Bytes written to the blob store.",
	})
)

func ReportCreated() {
	reportsCreated.Inc()
}

func StatusTransition(status string) {
	statusTransitions.WithLabelValues(status).Inc()
}

func UploadRejected(kind string) {
	uploadRejections.WithLabelValues(kind).Inc()
}

func Uploaded(size int64) {
	if size > 0 {
		uploadedBytes.Add(float64(size))
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency labelled by the chi route
// pattern, which keeps report IDs out of label values.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := newResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		route := unmatchedRoute
		if routeContext := chi.RouteContext(r.Context()); routeContext != nil {
			if pattern := routeContext.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
