package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tdx_gateway_requests_total",
		Help: "Logical gateway requests by resource and outcome",
	}, []string{"resource", "outcome"})

	gatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tdx_gateway_request_duration_seconds",
		Help:    "Logical gateway request duration, cache hits included",
		Buckets: prometheus.DefBuckets,
	}, []string{"resource"})
)

const (
	outcomeHit     = "cache_hit"
	outcomeFetched = "fetched"
)
