// Package metrics holds the Prometheus collectors shared by the services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QueueScheduled counts queue entries written, by origin
	// (autoresponder, confirmation-trigger, direct).
	QueueScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listflow_queue_scheduled_total",
			Help: "Queue entries scheduled",
		},
		[]string{"origin"},
	)

	QueuePurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listflow_queue_purged_total",
			Help: "Pending queue entries deleted",
		},
		[]string{"reason"},
	)

	SnapshotsRewritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listflow_queue_snapshots_rewritten_total",
			Help: "Pending queue entries rewritten with a fresh subscriber snapshot",
		},
	)

	Interactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listflow_interactions_total",
			Help: "Delivery outcome events handled, by type and result",
		},
		[]string{"type", "result"},
	)

	Suppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listflow_suppressed_requests_total",
			Help: "Subscriber mutations dropped because the email domain is blocked",
		},
	)

	Broadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listflow_broadcasts_total",
			Help: "Broadcast submissions, by outcome",
		},
		[]string{"outcome"},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listflow_emails_sent_total",
			Help: "Emails handed to the sending service, by kind and result",
		},
		[]string{"kind", "result"},
	)

	// SenderBreakerState is 0 closed, 1 half-open, 2 open.
	SenderBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "listflow_sender_breaker_state",
			Help: "State of the circuit breaker around the sending service",
		},
	)

	EventMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listflow_event_messages_total",
			Help: "Notification messages received from the event queue, by result",
		},
		[]string{"result"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
