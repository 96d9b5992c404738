package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	workspaceResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workspace_resolutions_total",
			Help: "Workspace context resolutions by outcome.",
		},
		[]string{"outcome"},
	)

	workspaceFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workspace_resolution_fallbacks_total",
			Help: "Resolutions that fell back to the personal workspace, by cause.",
		},
		[]string{"cause"},
	)

	permissionChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_permission_checks_total",
			Help: "App permission checks by app and result.",
		},
		[]string{"app", "result"},
	)
)

// Init registers metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		workspaceResolutions,
		workspaceFallbacks,
		permissionChecks,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncResolution records one workspace resolution outcome
// (personal, organization, owner, unauthenticated, error).
func IncResolution(outcome string) {
	workspaceResolutions.WithLabelValues(outcome).Inc()
}

// IncResolutionFallback records a fail-open fallback and its cause, so
// legitimate personal workspaces stay distinguishable from degraded ones.
func IncResolutionFallback(cause string) {
	workspaceFallbacks.WithLabelValues(cause).Inc()
}

// IncPermissionCheck records one lattice comparison served over the API.
func IncPermissionCheck(app string, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	permissionChecks.WithLabelValues(app, result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming responses flush through the instrumentation
// wrapper.
func (w *statusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Instrument wraps the handler with request rate, latency and in-flight
// measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w, code: 200}
		next.ServeHTTP(rec, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rec.code)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
		httpInFlight.Dec()
	})
}
