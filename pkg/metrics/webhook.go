package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
)

// WebhookMetrics counts billing webhook deliveries.
type WebhookMetrics struct {
	events *prometheus.CounterVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_webhook_events_total",
		Help: "Billing webhook deliveries by event type and outcome.",
	}, []string{"type", "outcome"})
	reg.MustRegister(events)
	return &WebhookMetrics{events: events}
}

// Observe records one delivery. eventType should be a closed event kind, not
// the raw provider string.
func (m *WebhookMetrics) Observe(eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(labelOrUnknown(eventType), outcome).Inc()
}
