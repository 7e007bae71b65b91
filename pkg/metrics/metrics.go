// Package metrics exposes the Prometheus registry the gateway reports to.
// Collectors are declared with promauto in the packages that own them
// (cache, ratelimit, auth, client, gateway); this package documents them and
// serves the registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package-level collector uses.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer backing Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Names lists every gateway metric family.
var Names = []string{
	"tdx_cache_hits_total",
	"tdx_cache_misses_total",
	"tdx_cache_entries",
	"tdx_cache_evictions_total",
	"tdx_rate_limit_decisions_total",
	"tdx_rate_limit_redis_fallbacks_total",
	"tdx_token_refreshes_total",
	"tdx_upstream_requests_total",
	"tdx_upstream_request_duration_seconds",
	"tdx_upstream_errors_total",
	"tdx_gateway_requests_total",
	"tdx_gateway_request_duration_seconds",
}

// Metrics Documentation
//
// Cache (pkg/cache):
//   - tdx_cache_hits_total (Counter): fresh entries served
//   - tdx_cache_misses_total{reason="absent|stale"} (Counter): lookups that went upstream
//   - tdx_cache_entries (Gauge): entries held, stale included
//   - tdx_cache_evictions_total (Counter): entries pushed out by the capacity bound
//
// Admission (pkg/ratelimit):
//   - tdx_rate_limit_decisions_total{backend="memory|redis", decision="granted|rejected"} (Counter)
//   - tdx_rate_limit_redis_fallbacks_total (Counter): checks answered in-process because Redis failed
//
// Token (pkg/auth):
//   - tdx_token_refreshes_total{result="success|failure"} (Counter)
//
// Upstream (pkg/client):
//   - tdx_upstream_requests_total{resource, status} (Counter)
//   - tdx_upstream_request_duration_seconds{resource} (Histogram)
//   - tdx_upstream_errors_total{class} (Counter): client, server, rate_limit, network
//
// Pipeline (pkg/gateway):
//   - tdx_gateway_requests_total{resource, outcome} (Counter): outcome is cache_hit,
//     fetched, or the error kind
//   - tdx_gateway_request_duration_seconds{resource} (Histogram)
//
// Example Prometheus Queries:
//
//	# Cache hit rate
//	sum(rate(tdx_cache_hits_total[5m])) /
//	(sum(rate(tdx_cache_hits_total[5m])) + sum(rate(tdx_cache_misses_total[5m])))
//
//	# Share of requests turned away by the admission gate
//	sum(rate(tdx_gateway_requests_total{outcome="RateLimited"}[5m])) /
//	sum(rate(tdx_gateway_requests_total[5m]))
//
//	# P95 upstream latency per resource
//	histogram_quantile(0.95, sum by (le, resource) (rate(tdx_upstream_request_duration_seconds_bucket[5m])))
