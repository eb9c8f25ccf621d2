package installprompt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var clientRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "offline_client_requests_total",
	Help: "Proxied requests by display mode and platform",
}, []string{"display", "platform"}) // display: standalone, browser; platform: ios, android, other
