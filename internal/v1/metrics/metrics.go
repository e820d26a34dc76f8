package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the arcade lobby server.
//
// Naming convention: namespace_subsystem_name
// - namespace: arcade (application-level grouping)
// - subsystem: websocket, room, profile, upstream, ratelimit
// - name: specific metric (connections_active, events_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, players)
// - Counter: Cumulative events (messages processed, lookups, cleanups)
// - Histogram: Latency distributions (processing time)

var (
	// ActiveWebSocketConnections tracks the current number of active WebSocket connections
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arcade",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of live rooms in the registry
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arcade",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomPlayers tracks the member count of each room
	RoomPlayers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "arcade",
		Subsystem: "room",
		Name:      "players_count",
		Help:      "Number of players in each room",
	}, []string{"room_id"})

	// WebsocketEvents counts processed WebSocket events by type and outcome
	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcade",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket events processed",
	}, []string{"event_type", "status"})

	// EventProcessingDuration tracks the time spent handling WebSocket events
	EventProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "arcade",
		Subsystem: "websocket",
		Name:      "event_processing_seconds",
		Help:      "Time spent processing WebSocket events",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"event_type"})

	// SnapshotBuildDuration tracks snapshot assembly time, including the
	// per-member profile appearance reads
	SnapshotBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "arcade",
		Subsystem: "room",
		Name:      "snapshot_build_seconds",
		Help:      "Time spent building room snapshots",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 3},
	})

	// RoomCleanups counts rooms removed by the janitor or inline cleanup
	RoomCleanups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcade",
		Subsystem: "room",
		Name:      "cleanups_total",
		Help:      "Total rooms cleaned up, by reason",
	}, []string{"reason"})

	// ProfileLookups counts profile store reads by outcome (hit, miss, error, default)
	ProfileLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcade",
		Subsystem: "profile",
		Name:      "lookups_total",
		Help:      "Total profile store lookups by outcome",
	}, []string{"outcome"})

	// CircuitBreakerState reports the breaker state per upstream (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "arcade",
		Subsystem: "upstream",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state per upstream service (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	// CircuitBreakerFailures counts requests rejected by an open breaker
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcade",
		Subsystem: "upstream",
		Name:      "circuit_breaker_failures_total",
		Help:      "Total requests rejected by an open circuit breaker",
	}, []string{"service"})

	// RateLimitRequests counts requests that passed the rate limiter
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcade",
		Subsystem: "ratelimit",
		Name:      "requests_total",
		Help:      "Total requests checked by the rate limiter",
	}, []string{"endpoint"})

	// RateLimitExceeded counts requests rejected by the rate limiter
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arcade",
		Subsystem: "ratelimit",
		Name:      "exceeded_total",
		Help:      "Total requests rejected by the rate limiter",
	}, []string{"endpoint", "limit_type"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
