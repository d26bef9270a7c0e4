// AngelaMos | 2026
// metrics.go

// Package metrics registers the Prometheus collectors for the cache,
// mutation and undo paths. Collectors are package-level and registered once
// with the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "user_admin"

// CacheFetchesTotal counts cache reads through Fetch.
// Label result: hit, stale, miss, error, dropped.
var CacheFetchesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_fetches_total",
		Help:      "Cache fetches by result.",
	},
	[]string{"result"},
)

// MutationsTotal counts settled mutations.
// Labels kind: create, update, delete; outcome: success, error, aborted.
var MutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mutations_total",
		Help:      "Settled optimistic mutations by kind and outcome.",
	},
	[]string{"kind", "outcome"},
)

var RollbacksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rollbacks_total",
		Help:      "Optimistic writes rolled back to their snapshot.",
	},
	[]string{"kind"},
)

var MutationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "mutation_duration_seconds",
		Help:      "Time from optimistic write to settle.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"kind"},
)

// UndoTicketsTotal counts undo tickets by lifecycle event.
// Label outcome: scheduled, cancelled, committed, failed.
var UndoTicketsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "undo_tickets_total",
		Help:      "Undo tickets by lifecycle outcome.",
	},
	[]string{"outcome"},
)

var UpstreamRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Requests to the remote user API by method and status class.",
	},
	[]string{"method", "status"},
)

// RateLimitDecisionsTotal counts limiter decisions.
// Label backend: redis, local. Label result: allowed, limited.
var RateLimitDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_decisions_total",
		Help:      "Rate limiter decisions by backend and result.",
	},
	[]string{"backend", "result"},
)

func Handler() http.Handler {
	return promhttp.Handler()
}
