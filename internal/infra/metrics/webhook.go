package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEvents,
		webhookMatches,
	)
}

var (
	// result: handled|ignored|unresolved|bad_signature
	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound provider webhook events by type and result.",
		},
		[]string{"type", "result"},
	)

	// strategy: exact|affix|metadata|latest_pending
	// latest_pending is the degraded heuristic; alert when it grows.
	webhookMatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_purchase_matches_total",
			Help: "Purchase lookups resolved per matching strategy.",
		},
		[]string{"strategy"},
	)
)

func IncWebhookEvent(eventType, result string) {
	webhookEvents.WithLabelValues(norm(eventType), norm(result)).Inc()
}

func IncWebhookMatch(strategy string) {
	webhookMatches.WithLabelValues(norm(strategy)).Inc()
}
