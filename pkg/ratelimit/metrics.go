package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rateLimitDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tdx_rate_limit_decisions_total",
		Help: "Admission decisions by backend and outcome",
	}, []string{"backend", "decision"})

	rateLimitRedisFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tdx_rate_limit_redis_fallbacks_total",
		Help: "Admission checks answered by the in-process limiter because Redis failed",
	})
)

func recordDecision(backend string, granted bool) {
	decision := "rejected"
	if granted {
		decision = "granted"
	}
	rateLimitDecisionsTotal.WithLabelValues(backend, decision).Inc()
}
