// Package metrics declares the coordinator's Prometheus metrics, following
// the teacher's declarative promauto style and namespace_subsystem_name
// convention.
//
// Naming convention: namespace_subsystem_name
//   - namespace: shuffle (application-level grouping)
//   - subsystem: queue, room, chain, circuit_breaker, rate_limit
//   - name: specific metric
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth tracks how many UTXOs are waiting per (token, amount) key.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shuffle",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Current number of UTXOs waiting in each shuffle queue",
	}, []string{"queue_key"})

	// ActiveRooms tracks the current number of live room actors.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shuffle",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active shuffle rooms",
	})

	// RoomParticipants tracks seated participant count per room.
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shuffle",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of participants seated in each room",
	}, []string{"room_id"})

	// TokensIssued counts shuffle-access and room-access tokens minted.
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shuffle",
		Subsystem: "token",
		Name:      "issued_total",
		Help:      "Total access tokens issued",
	}, []string{"kind"})

	// JoinSignatureVerifications counts join-signature verification
	// attempts and their outcome.
	JoinSignatureVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shuffle",
		Subsystem: "auth",
		Name:      "join_signature_verifications_total",
		Help:      "Total join signature verification attempts",
	}, []string{"status"})

	// RoundDuration tracks how long a room spends in each round phase.
	RoundDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shuffle",
		Subsystem: "room",
		Name:      "round_duration_seconds",
		Help:      "Time spent in each shuffle round phase",
		Buckets:   prometheus.DefBuckets,
	}, []string{"phase"})

	// ChainConnectorCalls counts calls made through the chain connector.
	ChainConnectorCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shuffle",
		Subsystem: "chain",
		Name:      "calls_total",
		Help:      "Total chain connector calls",
	}, []string{"method", "status"})

	// CircuitBreakerState: 0 Closed, 1 Open, 2 Half-Open.
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shuffle",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of a circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shuffle",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by a circuit breaker",
	}, []string{"service"})

	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shuffle",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shuffle",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total requests checked against the rate limiter",
	}, []string{"endpoint"})

	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shuffle",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total Redis operations",
	}, []string{"operation", "status"})

	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shuffle",
		Subsystem: "redis",
		Name:      "operation_duration_seconds",
		Help:      "Duration of Redis operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)
