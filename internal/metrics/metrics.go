// ABOUTME: Prometheus instrumentation for caching, remote calls and writes.
// ABOUTME: Collectors register on the default registry at package init.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Value cache
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_cache_hits_total",
			Help: "Value range reads served entirely from cache",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_cache_misses_total",
			Help: "Value range reads that required a remote fetch",
		},
		[]string{"cache"},
	)

	CacheFetchedDays = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracker_cache_fetched_days",
			Help:    "Number of days covered by each coalesced value fetch",
			Buckets: []float64{1, 2, 7, 14, 31, 90, 365},
		},
	)

	CacheFetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_cache_fetch_errors_total",
			Help: "Coalesced value fetches that failed",
		},
	)

	// Remote backend
	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_remote_request_duration_seconds",
			Help:    "Duration of requests to the tracker backend",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	RemoteRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_remote_request_errors_total",
			Help: "Failed requests to the tracker backend",
		},
		[]string{"operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracker_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Optimistic writes
	SyncWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_sync_writes_total",
			Help: "Value writes by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_events_published_total",
			Help: "Events published on the bus",
		},
		[]string{"topic"},
	)

	// Datastore API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_api_requests_total",
			Help: "Requests served by the datastore API",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_api_request_duration_seconds",
			Help:    "Datastore API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "route"},
	)
)

// RecordRemoteRequest records one backend call.
func RecordRemoteRequest(operation string, duration time.Duration, err error) {
	RemoteRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		RemoteRequestErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records one datastore API request.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordWrite records the outcome of a value write.
func RecordWrite(strategy string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	SyncWrites.WithLabelValues(strategy, outcome).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
