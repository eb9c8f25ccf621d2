package offline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the controller lifecycle and fetch path.
var (
	offlineFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_fetch_total",
		Help: "Requests seen by the offline controller by outcome",
	}, []string{"outcome"}) // bypass, hit, stored, passthrough, offline_page, placeholder

	offlineFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "offline_fetch_duration_seconds",
		Help:    "Time to answer a request by outcome",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"outcome"})

	offlineCacheWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offline_cache_write_failures_total",
		Help: "Best-effort cache writes that failed",
	})

	offlineInstallTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_install_total",
		Help: "Controller install attempts by result",
	}, []string{"result"}) // success, failure

	offlineStoresDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offline_stores_deleted_total",
		Help: "Stale cache stores deleted on activation",
	})

	offlineActiveVersion = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "offline_active_version",
		Help: "Set to 1 for the controller version currently in control",
	}, []string{"version"})
)
