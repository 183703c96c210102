// Package metrics provides Prometheus instrumentation for the signing service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts HTTP requests by method, path and status code.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes HTTP request latency by method and path.
	RequestDuration *prometheus.HistogramVec

	// URLsIssued counts signed URLs handed out, by backend.
	URLsIssued *prometheus.CounterVec

	// SignBlobDuration observes remote signing call latency.
	SignBlobDuration prometheus.Histogram

	// SignBlobFailures counts failed remote signing calls.
	SignBlobFailures prometheus.Counter
}

// New creates a Metrics instance with all collectors registered on a
// private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fletcher",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fletcher",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		URLsIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fletcher",
			Name:      "signed_urls_issued_total",
			Help:      "Total number of signed upload URLs issued.",
		}, []string{"backend"}),
		SignBlobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fletcher",
			Name:      "sign_blob_duration_seconds",
			Help:      "Remote signBlob call latency in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		SignBlobFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fletcher",
			Name:      "sign_blob_failures_total",
			Help:      "Total number of failed remote signBlob calls.",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware instruments HTTP handlers with request counting and timing.
// The route pattern is resolved after the handler runs so chi's route
// parameters don't explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		path := r.URL.Path
		m.RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// ObserveSignBlob records one remote signing call.
func (m *Metrics) ObserveSignBlob(duration time.Duration, err error) {
	m.SignBlobDuration.Observe(duration.Seconds())
	if err != nil {
		m.SignBlobFailures.Inc()
	}
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
