package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	responseTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "response_time",
			Help:    "http response time.",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60},
		},
	)

	totalHttpRequestsFromRole = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests_from_role", Help: "http requests from role"},
		[]string{"role"},
	)

	totalHttpRequestsToUri = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests_to_uri", Help: "http requests to route pattern"},
		[]string{"code", "uri", "method"},
	)

	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "services_dispatch_total", Help: "service dispatches by endpoint, definition and status"},
		[]string{"endpoint", "definition", "code"},
	)

	dispatchSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "services_dispatch_seconds",
			Help:    "time spent building a service response.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "definition"},
	)
)

func init() {
	prometheus.MustRegister(
		responseTime,
		totalHttpRequestsFromRole,
		totalHttpRequestsToUri,
		dispatchTotal,
		dispatchSeconds,
	)
}
