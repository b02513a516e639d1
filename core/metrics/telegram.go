package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(updatesTotal, handlerTotal, handlerLatencyMs, handlerMessages, sendFailures) }

var (
	updatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Inbound updates by kind.",
		},
		[]string{"kind"},
	)

	handlerTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_handler_total",
			Help: "Handled updates per handler and outcome.",
		},
		[]string{"handler", "outcome"},
	)

	handlerLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_handler_latency_ms",
			Help:    "Handler latency distribution in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"handler"},
	)

	handlerMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_handler_messages_total",
			Help: "Messages sent back to chats per handler.",
		},
		[]string{"handler"},
	)

	sendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_send_failures_total",
			Help: "Outbound Telegram calls that failed after retries, by error kind.",
		},
		[]string{"action", "kind"},
	)
)

// ObserveHandler records one handled update.
func ObserveHandler(handler, outcome string, took time.Duration, messages int) {
	handler = norm(handler)
	handlerTotal.WithLabelValues(handler, norm(outcome)).Inc()
	handlerLatencyMs.WithLabelValues(handler).Observe(float64(took.Milliseconds()))
	if messages > 0 {
		handlerMessages.WithLabelValues(handler).Add(float64(messages))
	}
}

// IncSendFailure counts an outbound call given up by the sender.
func IncSendFailure(action, kind string) {
	sendFailures.WithLabelValues(norm(action), norm(kind)).Inc()
}

// IncUpdate counts one inbound update of the given kind.
func IncUpdate(kind string) {
	updatesTotal.WithLabelValues(norm(kind)).Inc()
}
