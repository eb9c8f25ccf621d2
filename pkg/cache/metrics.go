package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks store hits by backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_hits_total",
			Help: "Total number of offline cache store hits",
		},
		[]string{"backend"}, // "redis", "memory"
	)

	// CacheMisses tracks store misses by backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_misses_total",
			Help: "Total number of offline cache store misses",
		},
		[]string{"backend"},
	)

	// CacheWrittenBytes tracks bytes written into stores by backend
	CacheWrittenBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_written_bytes_total",
			Help: "Total bytes written into offline cache stores",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks store operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_errors_total",
			Help: "Total number of offline cache store operation errors",
		},
		[]string{"operation"}, // "open", "keys", "match", "put", "delete", "delete_store"
	)
)
