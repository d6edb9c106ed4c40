package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Polling metrics
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rbxwatch_ticks_total",
			Help: "Total polling ticks executed",
		},
	)

	TickErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rbxwatch_tick_errors_total",
			Help: "Ticks abandoned due to an unexpected error",
		},
	)

	// Upstream metrics
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbxwatch_upstream_requests_total",
			Help: "Upstream API requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	UsernameCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rbxwatch_username_cache_hits_total",
			Help: "Username lookups served from the cache",
		},
	)

	UsernameCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rbxwatch_username_cache_misses_total",
			Help: "Username lookups that had to hit the users API",
		},
	)

	// Session metrics
	SessionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbxwatch_session_events_total",
			Help: "Session events emitted by type",
		},
		[]string{"type"},
	)

	PlayersOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rbxwatch_players_online",
			Help: "Monitored players currently online",
		},
	)

	// Publishing metrics
	PublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rbxwatch_publish_failures_total",
			Help: "Failed attempts to send or edit the status message",
		},
	)

	NotifyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rbxwatch_notify_failures_total",
			Help: "Notification sends that failed",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		TicksTotal,
		TickErrors,
		UpstreamRequests,
		UsernameCacheHits,
		UsernameCacheMisses,
		SessionEvents,
		PlayersOnline,
		PublishFailures,
		NotifyFailures,
	)
}
