// Package metrics declares the Prometheus instruments for the realtime core.
// Naming follows namespace_subsystem_name.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections is the current number of live WebSocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chorus",
		Subsystem: "ws",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// EventsTotal counts outbound events by op name.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chorus",
		Subsystem: "ws",
		Name:      "events_total",
		Help:      "Total outbound WebSocket events by op",
	}, []string{"op"})

	// IntentsTotal counts inbound client intents by op name and outcome.
	IntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chorus",
		Subsystem: "ws",
		Name:      "intents_total",
		Help:      "Total inbound client intents by op and status",
	}, []string{"op", "status"})

	// FanoutDuration observes time spent delivering one event to its targets.
	FanoutDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chorus",
		Subsystem: "ws",
		Name:      "fanout_seconds",
		Help:      "Time spent fanning out one event",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
	}, []string{"scope"})

	// SlowConsumersTotal counts connections dropped for full send buffers.
	SlowConsumersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chorus",
		Subsystem: "ws",
		Name:      "slow_consumers_total",
		Help:      "Connections dropped because their outbound queue overflowed",
	})

	// VoiceParticipants is the current number of users in voice channels.
	VoiceParticipants = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chorus",
		Subsystem: "voice",
		Name:      "participants_active",
		Help:      "Current number of users in voice channels",
	})

	// CircuitBreakerState reports breaker state per external dependency
	// (0 closed, 1 open, 2 half-open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "chorus",
		Subsystem: "breaker",
		Name:      "state",
		Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"target"})
)
