package endpoint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for endpoint operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ximilar_requests_total",
		Help: "Total HTTP requests by method and status",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ximilar_request_duration_seconds",
		Help:    "HTTP request duration in seconds by method",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 90},
	}, []string{"method"})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ximilar_retries_total",
		Help: "Total number of connection retry attempts",
	})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ximilar_retry_exhausted_total",
		Help: "Total number of times connection retries were exhausted",
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ximilar_errors_total",
		Help: "Total endpoint errors by class",
	}, []string{"class"})
)
