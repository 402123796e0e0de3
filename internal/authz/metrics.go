package authz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts forward-auth decisions by route and outcome.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authgate",
			Subsystem: "authz",
			Name:      "decisions_total",
			Help:      "Total forward-auth decisions, by route host/path and decision.",
		},
		[]string{"route_host", "route_path", "decision"},
	)

	// DecisionDuration observes evaluator latency, excluding session fetch.
	DecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "authgate",
			Subsystem: "authz",
			Name:      "decision_duration_seconds",
			Help:      "Time to evaluate a RequireBlock against a resolved session.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route_host", "route_path"},
	)

	// DeniedTotal counts denials by reason kind.
	DeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authgate",
			Subsystem: "authz",
			Name:      "denied_total",
			Help:      "Total denied decisions, by deny reason kind.",
		},
		[]string{"reason"},
	)

	// SessionCacheHitsTotal and SessionCacheMissesTotal track the Session
	// Resolver's cache effectiveness.
	SessionCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "authgate",
			Subsystem: "session_cache",
			Name:      "hits_total",
			Help:      "Total session cache hits.",
		},
	)
	SessionCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "authgate",
			Subsystem: "session_cache",
			Name:      "misses_total",
			Help:      "Total session cache misses.",
		},
	)
	SessionCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "authgate",
			Subsystem: "session_cache",
			Name:      "size",
			Help:      "Current number of cached session entries (in-process cache only).",
		},
	)

	// UpstreamErrorsTotal counts session-endpoint fetch failures.
	UpstreamErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "authgate",
			Subsystem: "session_resolve",
			Name:      "upstream_errors_total",
			Help:      "Total failures fetching or parsing the session endpoint response.",
		},
	)
)

// RecordDecision updates DecisionsTotal, DecisionDuration, and (if denied)
// DeniedTotal for a single forward-auth request.
func RecordDecision(routeHost, routePath, decision string, reason string, duration time.Duration) {
	DecisionsTotal.WithLabelValues(routeHost, routePath, decision).Inc()
	DecisionDuration.WithLabelValues(routeHost, routePath).Observe(duration.Seconds())
	if decision == "deny" && reason != "" {
		DeniedTotal.WithLabelValues(reason).Inc()
	}
}
