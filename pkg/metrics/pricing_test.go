package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPricingMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPricingMetrics(reg)

	m.ObserveResolution("cart", true)
	m.ObserveResolution("cart", true)
	m.ObserveResolution("kit", false)
	m.IncMalformedRuleSet()
	m.IncKitSession(OutcomeCompleted)
	m.IncCartMutation("add")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "pricing_resolutions_total", map[string]string{"source": "cart", "outcome": OutcomeValid}); err != nil {
		t.Fatalf("fetch resolutions: %v", err)
	} else if got != 2 {
		t.Fatalf("expected 2 valid cart resolutions, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "pricing_resolutions_total", map[string]string{"source": "kit", "outcome": OutcomeInvalid}); err != nil {
		t.Fatalf("fetch resolutions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected 1 invalid kit resolution, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "pricing_malformed_rule_sets_total", nil); err != nil {
		t.Fatalf("fetch malformed: %v", err)
	} else if got != 1 {
		t.Fatalf("expected malformed=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "kit_sessions_total", map[string]string{"outcome": OutcomeCompleted}); err != nil {
		t.Fatalf("fetch kit sessions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected completed=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "cart_mutations_total", map[string]string{"op": "add"}); err != nil {
		t.Fatalf("fetch cart mutations: %v", err)
	} else if got != 1 {
		t.Fatalf("expected add=1, got %f", got)
	}
}

func TestPricingMetricsNilSafe(t *testing.T) {
	var m *PricingMetrics
	m.ObserveResolution("cart", true)
	m.IncMalformedRuleSet()
	m.IncKitSession(OutcomeCancelled)
	m.IncCartMutation("clear")

	noop := NewPricingMetrics(nil)
	noop.ObserveResolution("", false)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matchesLabels(metric, labels) {
				return metric.GetCounter().GetValue(), nil
			}
		}
	}
	return 0, fmt.Errorf("metric %s%v not found", name, labels)
}

func matchesLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok {
			if pair.GetValue() != want {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}
