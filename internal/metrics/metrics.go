// Package metrics holds the domain counters exported next to the HTTP
// metrics on /metrics. Label values come from closed sets (denial reasons,
// outcomes, providers), so cardinality stays bounded.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// AccessDecisions counts public read decisions. reason is "granted" on success.
	AccessDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartas_access_decisions_total",
			Help: "Access policy decisions by outcome reason.",
		},
		[]string{"reason"},
	)

	// PaymentTransitions counts state machine writes by outcome and whether
	// the write changed the letter.
	PaymentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartas_payment_transitions_total",
			Help: "Payment outcomes applied to letters.",
		},
		[]string{"outcome", "result"},
	)

	// WebhookDeliveries counts payment callbacks by provider and handling result.
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartas_webhook_deliveries_total",
			Help: "Payment webhook deliveries by provider and result.",
		},
		[]string{"provider", "result"},
	)

	// RateLimited counts requests rejected by a limiter.
	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartas_rate_limited_total",
			Help: "Requests rejected by rate limiting.",
		},
		[]string{"limiter"},
	)

	// LettersCreated counts new letters by initial state.
	LettersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartas_letters_created_total",
			Help: "Letters created by initial state.",
		},
		[]string{"state"},
	)

	// EventPublishFailures counts events that could not be handed to the broker.
	EventPublishFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartas_event_publish_failures_total",
			Help: "Letter events that failed to publish.",
		},
		[]string{"subject"},
	)
)

func init() {
	prometheus.MustRegister(
		AccessDecisions,
		PaymentTransitions,
		WebhookDeliveries,
		RateLimited,
		LettersCreated,
		EventPublishFailures,
	)
}
