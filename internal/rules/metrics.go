package rules

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Reasons recorded when sequence cursors are reset.
const (
	ResetReasonMatch   = "match"
	ResetReasonTimeout = "timeout"
	ResetReasonDisrupt = "disrupt"
	ResetReasonRule    = "rule"
)

// Metrics holds Prometheus metrics for the Engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	eventsTotal    *prometheus.CounterVec
	advancesTotal  *prometheus.CounterVec
	resetsTotal    *prometheus.CounterVec
	emissionsTotal *prometheus.CounterVec
	activeRules    prometheus.Gauge
}

// NewMetrics creates and registers engine metrics.
// Returns nil metrics when no registerer is provided (nil input = nil feature).
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		return nil, nil
	}

	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventfilter",
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Total events evaluated by the engine",
		}, []string{"type", "result"}),

		advancesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventfilter",
			Subsystem: "engine",
			Name:      "sequence_advances_total",
			Help:      "Total sequence steps completed without finishing the sequence",
		}, []string{"rule_name"}),

		resetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventfilter",
			Subsystem: "engine",
			Name:      "sequence_resets_total",
			Help:      "Total sequence cursor resets by reason",
		}, []string{"reason"}),

		emissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventfilter",
			Subsystem: "engine",
			Name:      "emissions_total",
			Help:      "Total derived events emitted",
		}, []string{"type"}),

		activeRules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eventfilter",
			Subsystem: "engine",
			Name:      "active_rules",
			Help:      "Number of rules in the compiled table",
		}),
	}

	for _, c := range []prometheus.Collector{m.eventsTotal, m.advancesTotal, m.resetsTotal, m.emissionsTotal, m.activeRules} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeEvent(eventType string, handled bool) {
	if m == nil {
		return
	}
	result := "passed"
	if handled {
		result = "handled"
	}
	m.eventsTotal.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) observeAdvance(ruleName string) {
	if m == nil {
		return
	}
	m.advancesTotal.WithLabelValues(ruleName).Inc()
}

func (m *Metrics) observeReset(reason string) {
	if m == nil {
		return
	}
	m.resetsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeEmission(eventType string) {
	if m == nil {
		return
	}
	m.emissionsTotal.WithLabelValues(eventType).Inc()
}

func (m *Metrics) setRules(n int) {
	if m == nil {
		return
	}
	m.activeRules.Set(float64(n))
}
