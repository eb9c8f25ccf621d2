// Package metrics provides centralized Prometheus metrics registry for the offline cache.
// All metrics are defined in their respective packages (cache, offline, precache, icons)
// to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the offline cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Cache Store Metrics (pkg/cache):
//   - offline_cache_hits_total{backend="redis|memory"} (Counter): Store hits by backend
//   - offline_cache_misses_total{backend} (Counter): Store misses by backend
//   - offline_cache_written_bytes_total{backend} (Counter): Bytes written into stores
//   - offline_cache_errors_total{operation} (Counter): Store operation errors
//
// Controller Metrics (pkg/offline):
//   - offline_fetch_total{outcome} (Counter): Requests by outcome
//     (bypass, hit, stored, passthrough, offline_page, placeholder)
//   - offline_fetch_duration_seconds{outcome} (Histogram): Time to answer by outcome
//   - offline_cache_write_failures_total (Counter): Best-effort cache writes that failed
//   - offline_install_total{result} (Counter): Install attempts by result
//   - offline_stores_deleted_total (Counter): Stale stores deleted on activation
//   - offline_active_version{version} (Gauge): 1 for the version in control
//
// Precache Metrics (pkg/precache):
//   - offline_precache_retries_total{error_class} (Counter): Retry attempts by error class
//   - offline_precache_retry_exhausted_total{error_class} (Counter): URLs that exhausted retries
//
// Client Metrics (pkg/installprompt):
//   - offline_client_requests_total{display, platform} (Counter): Proxied requests by
//     display mode (standalone, browser) and platform (ios, android, other)
//
// Icon Metrics (pkg/icons):
//   - offline_icons_missing (Gauge): Icons missing at the last check
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(offline_cache_hits_total[5m])) /
//   (sum(rate(offline_cache_hits_total[5m])) + sum(rate(offline_cache_misses_total[5m])))
//
//   # Offline Fallback Rate
//   sum(rate(offline_fetch_total{outcome=~"offline_page|placeholder"}[5m]))
//
//   # Failed Installs
//   increase(offline_install_total{result="failure"}[1h]) > 0
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(offline_fetch_duration_seconds_bucket[5m]))
