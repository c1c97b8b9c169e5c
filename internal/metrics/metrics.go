// Package metrics exposes the decision core's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the engine touches. One instance per
// process, registered on a single registry so tests can use their own.
type Metrics struct {
	Decisions    *prometheus.CounterVec
	GuardBlocks  *prometheus.CounterVec
	RiskRejects  prometheus.Counter
	RegimeState  *prometheus.GaugeVec
	EvaluateTime prometheus.Histogram
}

// New registers all collectors on reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "argusd",
			Name:      "decisions_total",
			Help:      "Final decisions by action and tier.",
		}, []string{"action", "tier"}),
		GuardBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "argusd",
			Name:      "guard_blocks_total",
			Help:      "Signals blocked by anti-churn rules, by rule.",
		}, []string{"rule"}),
		RiskRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "argusd",
			Name:      "risk_rejections_total",
			Help:      "Buys rejected by the risk budget governor.",
		}),
		RegimeState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "argusd",
			Name:      "regime_state",
			Help:      "1 for the currently detected regime, 0 otherwise.",
		}, []string{"regime"}),
		EvaluateTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "argusd",
			Name:      "evaluate_duration_seconds",
			Help:      "Wall time of a full pipeline evaluation.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 8),
		}),
	}

	reg.MustRegister(m.Decisions, m.GuardBlocks, m.RiskRejects, m.RegimeState, m.EvaluateTime)
	return m
}

// SetRegime flips the regime gauge to the given state.
func (m *Metrics) SetRegime(active string, all []string) {
	for _, r := range all {
		v := 0.0
		if r == active {
			v = 1.0
		}
		m.RegimeState.WithLabelValues(r).Set(v)
	}
}
