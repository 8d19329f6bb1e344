package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// initStateStoreMetrics initializes state-store-related metrics.
func (m *Manager) initStateStoreMetrics(_ Config) {
	m.statePuts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statestore_puts_total",
			Help: "Total number of state store puts by outcome",
		},
		[]string{"outcome"},
	)

	m.registry.MustRegister(m.statePuts)
}

// RecordStatePut records one state store put and whether it deduplicated.
func (m *Manager) RecordStatePut(outcome string) {
	if !m.enabled {
		return
	}
	m.statePuts.WithLabelValues(outcome).Inc()
}
