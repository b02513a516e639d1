package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(storeOps, storeLatencyMs, activeConversations, dialogueTransitions) }

var (
	storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "counter_store_ops_total",
			Help: "Counter store operations by op and outcome.",
		},
		[]string{"op", "outcome"},
	)

	storeLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "counter_store_latency_ms",
			Help:    "Counter store latency distribution in milliseconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250},
		},
		[]string{"op"},
	)

	activeConversations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dialogue_active_conversations",
			Help: "Chats currently parked in a multi-step flow.",
		},
	)

	dialogueTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_transitions_total",
			Help: "Dialogue step transitions.",
		},
		[]string{"from", "to"},
	)
)

// ObserveStoreOp records one counter store call.
func ObserveStoreOp(op string, err error, took time.Duration) {
	op = norm(op)
	storeOps.WithLabelValues(op, outcome(err)).Inc()
	storeLatencyMs.WithLabelValues(op).Observe(float64(took.Microseconds()) / 1000)
}

// SetActiveConversations publishes the number of parked conversations.
func SetActiveConversations(n int) {
	activeConversations.Set(float64(n))
}

// IncTransition counts a dialogue step change.
func IncTransition(from, to string) {
	dialogueTransitions.WithLabelValues(norm(from), norm(to)).Inc()
}
