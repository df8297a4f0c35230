// Package metrics provides the centralized Prometheus registry reference for
// the affiliate smart-search stack. All metrics are defined in their
// respective packages (marketplace, cache, ratelimit, smartsearch) to
// maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the stack.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Marketplace Client Metrics (pkg/marketplace):
//   - affiliate_marketplace_requests_total{method, status} (Counter): Requests by remote method and HTTP status
//   - affiliate_marketplace_request_duration_seconds{method} (Histogram): Request duration by remote method
//   - affiliate_marketplace_errors_total{kind} (Counter): Errors by kind (invalid_parameter, remote_unavailable, rate_limited, permission_denied, remote_protocol)
//   - affiliate_marketplace_retries_total{method} (Counter): Retry attempts by remote method
//   - affiliate_marketplace_retry_backoff_seconds{method} (Histogram): Backoff duration by remote method
//   - affiliate_marketplace_retry_exhausted_total{method} (Counter): Calls that exhausted max retries
//   - affiliate_marketplace_breaker_transitions_total{state} (Counter): Circuit breaker state transitions
//
// Rate Limit Metrics (pkg/ratelimit):
//   - affiliate_rate_limit_blocks_total (Counter): Calls blocked by an active cooldown
//   - affiliate_rate_limit_trips_total (Counter): Cooldown trips after remote rate limiting
//   - affiliate_rate_limit_cooldown_seconds (Gauge): Current cooldown window length
//
// Cache Metrics (pkg/cache):
//   - affiliate_cache_hits_total{store} (Counter): Cache hits by store (search, link)
//   - affiliate_cache_misses_total{store} (Counter): Cache misses by store
//   - affiliate_cache_evictions_total{store} (Counter): Expired entries evicted
//   - affiliate_cache_errors_total{store, operation} (Counter): Backend faults degraded to misses
//   - affiliate_cache_entries{store} (Gauge): Entries currently stored (memory backend)
//
// Smart Search Metrics (pkg/smartsearch):
//   - affiliate_smartsearch_requests_total{outcome} (Counter): Requests by outcome (completed, failed)
//   - affiliate_smartsearch_search_cache_hits_total (Counter): Searches served from cache
//   - affiliate_smartsearch_links_total{source} (Counter): Links by source (cached, generated, unavailable)
//   - affiliate_smartsearch_api_calls_saved_total (Counter): Remote-call units avoided
//   - affiliate_smartsearch_request_duration_seconds (Histogram): End-to-end smart-search duration
//   - affiliate_smartsearch_shared_fetches_total (Counter): Fetches shared between concurrent identical searches
//
// Example Prometheus Queries:
//
//   # Search Cache Hit Rate
//   sum(rate(affiliate_cache_hits_total{store="search"}[5m])) /
//   (sum(rate(affiliate_cache_hits_total{store="search"}[5m])) + sum(rate(affiliate_cache_misses_total{store="search"}[5m])))
//
//   # Remote Error Rate by Kind
//   rate(affiliate_marketplace_errors_total[5m])
//
//   # P95 Smart Search Latency
//   histogram_quantile(0.95, rate(affiliate_smartsearch_request_duration_seconds_bucket[5m]))
//
//   # Remote Calls Saved per Minute
//   rate(affiliate_smartsearch_api_calls_saved_total[1m]) * 60
//
//   # Cooldown Pressure
//   affiliate_rate_limit_cooldown_seconds > 0
