package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeValid     = "valid"
	OutcomeInvalid   = "invalid"
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
)

// PricingMetrics records how the storefront resolves prices and mutates carts.
type PricingMetrics struct {
	resolutions  *prometheus.CounterVec
	malformed    prometheus.Counter
	kitSessions  *prometheus.CounterVec
	cartMutation *prometheus.CounterVec
}

// NewPricingMetrics registers the storefront metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewPricingMetrics(reg prometheus.Registerer) *PricingMetrics {
	if reg == nil {
		return &PricingMetrics{}
	}
	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_resolutions_total",
		Help: "Price resolutions by caller and outcome.",
	}, []string{"source", "outcome"})
	malformed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pricing_malformed_rule_sets_total",
		Help: "Products whose rule sets were rejected at load and fell back to base price.",
	})
	kitSessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kit_sessions_total",
		Help: "Kit sessions that reached a terminal state.",
	}, []string{"outcome"})
	cartMutation := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart snapshot writes by operation.",
	}, []string{"op"})
	reg.MustRegister(resolutions, malformed, kitSessions, cartMutation)
	return &PricingMetrics{
		resolutions:  resolutions,
		malformed:    malformed,
		kitSessions:  kitSessions,
		cartMutation: cartMutation,
	}
}

// ObserveResolution counts a single resolver call made by source.
func (m *PricingMetrics) ObserveResolution(source string, valid bool) {
	if m == nil || m.resolutions == nil {
		return
	}
	outcome := OutcomeInvalid
	if valid {
		outcome = OutcomeValid
	}
	m.resolutions.WithLabelValues(normalizeLabel(source), outcome).Inc()
}

// IncMalformedRuleSet counts a rule set stripped at catalog load.
func (m *PricingMetrics) IncMalformedRuleSet() {
	if m == nil || m.malformed == nil {
		return
	}
	m.malformed.Inc()
}

// IncKitSession counts a kit session ending with outcome.
func (m *PricingMetrics) IncKitSession(outcome string) {
	if m == nil || m.kitSessions == nil {
		return
	}
	m.kitSessions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncCartMutation counts a persisted cart operation.
func (m *PricingMetrics) IncCartMutation(op string) {
	if m == nil || m.cartMutation == nil {
		return
	}
	m.cartMutation.WithLabelValues(normalizeLabel(op)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
