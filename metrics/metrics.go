// Package metrics holds the prometheus collectors of the bridge.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type BridgeMetrics struct {
	conversions *prometheus.CounterVec
	bindings    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	pending     prometheus.Gauge
}

var (
	bridgeOnce     sync.Once
	bridgeRegistry *BridgeMetrics
)

// Bridge returns the lazily registered bridge metrics.
func Bridge() *BridgeMetrics {
	bridgeOnce.Do(func() {
		bridgeRegistry = &BridgeMetrics{
			conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bridge",
				Subsystem: "conversion",
				Name:      "total",
				Help:      "Conversions segmented by direction and outcome.",
			}, []string{"direction", "outcome"}),
			bindings: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bridge",
				Subsystem: "binding",
				Name:      "total",
				Help:      "Wallet binding attempts segmented by outcome.",
			}, []string{"outcome"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "bridge",
				Subsystem: "conversion",
				Name:      "duration_seconds",
				Help:      "Time from request to terminal phase.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			}, []string{"direction"}),
			pending: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "bridge",
				Subsystem: "reconciliation",
				Name:      "pending",
				Help:      "Conversions whose chain side effect is not yet mirrored in the ledger.",
			}),
		}

		prometheus.MustRegister(
			bridgeRegistry.conversions,
			bridgeRegistry.bindings,
			bridgeRegistry.duration,
			bridgeRegistry.pending,
		)
	})

	return bridgeRegistry
}

func (m *BridgeMetrics) ObserveConversion(direction, outcome string, seconds float64) {
	if m == nil {
		return
	}

	m.conversions.WithLabelValues(direction, outcome).Inc()
	if seconds > 0 {
		m.duration.WithLabelValues(direction).Observe(seconds)
	}
}

func (m *BridgeMetrics) ObserveBinding(outcome string) {
	if m == nil {
		return
	}

	m.bindings.WithLabelValues(outcome).Inc()
}

func (m *BridgeMetrics) SetPending(n int) {
	if m == nil {
		return
	}

	m.pending.Set(float64(n))
}
