// Package metrics exposes the Prometheus registry shared by the favorites
// packages. Metrics are defined in their own packages (client, cache,
// ratelimit, favorites) and registered via promauto; this package serves
// them and documents what exists.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package's promauto metrics land in.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the matching gatherer for Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves Gatherer in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - favorites_rate_limit_remaining (Gauge): Requests left in the API's rate limit window
//   - favorites_rate_limit_blocks_total (Counter): Requests blocked at the critical threshold
//   - favorites_rate_limit_throttles_total (Counter): Requests delayed at the warning threshold
//
// Cache Metrics (pkg/cache):
//   - favorites_cache_hits_total (Counter): Lookups served from Redis
//   - favorites_cache_misses_total (Counter): Lookups not in Redis
//   - favorites_cache_stored_bytes_total (Counter): Bytes written to the cache
//   - favorites_cache_conditional_requests_total (Counter): Revalidations sent with If-None-Match/If-Modified-Since
//   - favorites_cache_not_modified_total (Counter): 304 responses
//   - favorites_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - favorites_api_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - favorites_api_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - favorites_api_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - favorites_api_retries_total{error_class} (Counter): Retry attempts by error class
//   - favorites_api_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - favorites_api_retry_exhausted_total{error_class} (Counter): Requests that used every attempt
//
// List Metrics (pkg/favorites):
//   - favorites_pages_fetched_total{kind, outcome} (Counter): Pages loaded by entity kind
//   - favorites_reconcile_duration_seconds{kind} (Histogram): Reference to entity resolution time
//   - favorites_reorders_total{outcome} (Counter): Reorders by outcome
//   - favorites_stale_updates_total (Counter): Completions dropped after Reset or Close
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(favorites_cache_hits_total[5m])) /
//   (sum(rate(favorites_cache_hits_total[5m])) + sum(rate(favorites_cache_misses_total[5m])))
//
//   # Rate Limit Headroom
//   favorites_rate_limit_remaining < 15
//
//   # Failed Page Ratio
//   sum(rate(favorites_pages_fetched_total{outcome="error"}[5m])) /
//   sum(rate(favorites_pages_fetched_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(favorites_api_request_duration_seconds_bucket[5m]))
