package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PlatformMetrics records counters for the money-flow hot paths.
type PlatformMetrics struct {
	transitions     *prometheus.CounterVec
	transitionFails *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	ledgerWrites    *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
	blockedMessages prometheus.Counter
}

// NewPlatformMetrics registers the platform metrics on the provided registerer.
func NewPlatformMetrics(reg prometheus.Registerer) *PlatformMetrics {
	if reg == nil {
		return &PlatformMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contract_transitions_total",
		Help: "Accepted contract state transitions by action.",
	}, []string{"action"})
	transitionFails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contract_transition_rejections_total",
		Help: "Rejected contract transitions by action.",
	}, []string{"action"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhook_events_total",
		Help: "Gateway webhook events by outcome.",
	}, []string{"outcome"})
	ledgerWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entries_total",
		Help: "Ledger entries written by kind.",
	}, []string{"kind"})
	gatewayLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_call_duration_seconds",
		Help:    "Duration of payment gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	blockedMessages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messages_blocked_total",
		Help: "Messages rejected by the contact-info gatekeeper.",
	})
	reg.MustRegister(transitions, transitionFails, webhookEvents, ledgerWrites, gatewayLatency, blockedMessages)
	return &PlatformMetrics{
		transitions:     transitions,
		transitionFails: transitionFails,
		webhookEvents:   webhookEvents,
		ledgerWrites:    ledgerWrites,
		gatewayLatency:  gatewayLatency,
		blockedMessages: blockedMessages,
	}
}

// IncTransition increments the accepted-transition counter for the action.
func (m *PlatformMetrics) IncTransition(action string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(action)).Inc()
}

// IncTransitionRejected increments the rejected-transition counter for the action.
func (m *PlatformMetrics) IncTransitionRejected(action string) {
	if m == nil || m.transitionFails == nil {
		return
	}
	m.transitionFails.WithLabelValues(normalizeLabel(action)).Inc()
}

// IncWebhookEvent increments the webhook counter for the outcome
// (applied, duplicate, review, invalid_signature).
func (m *PlatformMetrics) IncWebhookEvent(outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncLedgerWrite increments the ledger write counter for the entry kind.
func (m *PlatformMetrics) IncLedgerWrite(kind string) {
	if m == nil || m.ledgerWrites == nil {
		return
	}
	m.ledgerWrites.WithLabelValues(normalizeLabel(kind)).Inc()
}

// ObserveGatewayCall records the duration of a gateway operation.
func (m *PlatformMetrics) ObserveGatewayCall(operation string, duration time.Duration) {
	if m == nil || m.gatewayLatency == nil {
		return
	}
	m.gatewayLatency.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncBlockedMessage increments the gatekeeper block counter.
func (m *PlatformMetrics) IncBlockedMessage() {
	if m == nil || m.blockedMessages == nil {
		return
	}
	m.blockedMessages.Inc()
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
