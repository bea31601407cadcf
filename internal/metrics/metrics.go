package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SessionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duel_sessions_created_total",
			Help: "Sessions written to the directory",
		},
		[]string{"game"},
	)
	SessionsJoined = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duel_sessions_joined_total",
			Help: "Sessions claimed by a joiner",
		},
		[]string{"game"},
	)
	SessionsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duel_sessions_cancelled_total",
			Help: "Sessions removed by their creator",
		},
	)
	SessionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duel_sessions_expired_total",
			Help: "Sessions dropped after the retention window",
		},
	)
	SessionsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duel_sessions_invalid_dropped_total",
			Help: "Persisted session records dropped on load because they failed validation",
		},
	)

	JoinsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duel_join_notifications_delivered_total",
			Help: "Join notifications handed to a waiting creator",
		},
		[]string{"channel"},
	)
	JoinsStale = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duel_join_notifications_stale_total",
			Help: "Durable join notifications ignored because they were older than the freshness window",
		},
	)
	SnapshotsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duel_directory_snapshots_published_total",
			Help: "Directory snapshots published on the bus",
		},
	)

	MatchesStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duel_matches_started_total",
			Help: "Matches started by game type and mode",
		},
		[]string{"game", "mode"},
	)
	MatchesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duel_matches_completed_total",
			Help: "Matches completed by game type and local result",
		},
		[]string{"game", "result"},
	)
	RedundantTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duel_redundant_triggers_dropped_total",
			Help: "Round or match transitions dropped by the processing latch",
		},
		[]string{"trigger"},
	)
	InvariantViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duel_match_invariant_violations_total",
			Help: "Match state invariant violations clamped at runtime",
		},
	)

	ReportFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duel_result_report_failures_total",
			Help: "Match results the profile store failed to record",
		},
	)

	Connections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "duel_ws_connections",
			Help: "Participant websocket connections currently open",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsCreated,
		SessionsJoined,
		SessionsCancelled,
		SessionsExpired,
		SessionsDropped,
		JoinsDelivered,
		JoinsStale,
		SnapshotsPublished,
		MatchesStarted,
		MatchesCompleted,
		RedundantTriggers,
		InvariantViolations,
		ReportFailures,
		Connections,
	)
}
