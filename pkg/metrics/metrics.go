// Package metrics provides the Prometheus registry and HTTP handler for the
// Ximilar client.
// All metrics are defined in their respective packages (endpoint, batch, cache)
// to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the Ximilar client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns an HTTP handler exposing all registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Request Metrics (pkg/endpoint):
//   - ximilar_requests_total{method, status} (Counter): Total requests by method and HTTP status
//   - ximilar_request_duration_seconds{method} (Histogram): Request duration by method
//   - ximilar_errors_total{class} (Counter): Errors by class (config, redirect, client, server, content_type)
//
// Retry Metrics (pkg/endpoint):
//   - ximilar_retries_total (Counter): Connection retry attempts
//   - ximilar_retry_exhausted_total (Counter): Requests that exhausted max attempts
//
// Batch Metrics (pkg/batch):
//   - ximilar_batch_chunks_total{result} (Counter): Chunks by result (ok, error, skipped)
//   - ximilar_batch_records_total (Counter): Records delivered to batch operations
//
// Cache Metrics (pkg/cache):
//   - ximilar_cache_hits_total{layer} (Counter): Cache hits by layer (redis, memory)
//   - ximilar_cache_misses_total{layer} (Counter): Cache misses by layer
//   - ximilar_cache_errors_total{operation} (Counter): Cache operation errors (get, set, delete)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ximilar_cache_hits_total[5m])) /
//   (sum(rate(ximilar_cache_hits_total[5m])) + sum(rate(ximilar_cache_misses_total[5m])))
//
//   # Server Error Rate
//   rate(ximilar_errors_total{class="server"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(ximilar_request_duration_seconds_bucket[5m]))
//
//   # Failed Batch Chunks
//   increase(ximilar_batch_chunks_total{result="error"}[1h])
