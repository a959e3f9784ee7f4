package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DispatchLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_cache_lookups_total",
			Help: "Dispatch cache lookups by query and result (hit or miss)",
		},
		[]string{"query", "result"},
	)

	DispatchInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_cache_invalidated_keys_total",
			Help: "Cached query results dropped by command invalidation, by entity",
		},
		[]string{"entity"},
	)

	DeletionExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agency_deletion_executions_total",
			Help: "Agency deletion executions by outcome",
		},
		[]string{"outcome"},
	)

	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_provider_calls_total",
			Help: "Payment provider calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route pattern, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

var initOnce sync.Once

// Init registers metrics with Prometheus
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(DispatchLookups)
		prometheus.MustRegister(DispatchInvalidations)
		prometheus.MustRegister(DeletionExecutions)
		prometheus.MustRegister(ProviderCalls)
		prometheus.MustRegister(HTTPRequests)
		prometheus.MustRegister(HTTPDuration)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
