package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// initLedgerMetrics initializes ledger-related metrics.
func (m *Manager) initLedgerMetrics(cfg Config) {
	m.ledgerAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_appends_total",
			Help: "Total number of ledger append attempts by result",
		},
		[]string{"result"},
	)

	m.appendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_append_duration_seconds",
			Help:    "Ledger append duration in seconds",
			Buckets: cfg.AppendDurationBuckets,
		},
		[]string{"result"},
	)

	m.entropyDelta = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_entropy_delta",
			Help:    "Signed entropy delta of committed mutation events",
			Buckets: cfg.EntropyDeltaBuckets,
		},
	)

	m.branchHeads = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledger_branch_heads",
			Help: "Current number of branch heads per agent",
		},
		[]string{"agent_id"},
	)

	m.registry.MustRegister(m.ledgerAppends)
	m.registry.MustRegister(m.appendDuration)
	m.registry.MustRegister(m.entropyDelta)
	m.registry.MustRegister(m.branchHeads)
}

// RecordAppend records one ledger append attempt and its duration.
func (m *Manager) RecordAppend(result string, seconds float64) {
	if !m.enabled {
		return
	}
	m.ledgerAppends.WithLabelValues(result).Inc()
	m.appendDuration.WithLabelValues(result).Observe(seconds)
}

// RecordEntropyDelta records the entropy delta of a committed event.
func (m *Manager) RecordEntropyDelta(delta float64) {
	if !m.enabled {
		return
	}
	m.entropyDelta.Observe(delta)
}

// SetBranchHeads sets the current head count for an agent.
func (m *Manager) SetBranchHeads(agentID string, heads int) {
	if !m.enabled {
		return
	}
	m.branchHeads.WithLabelValues(agentID).Set(float64(heads))
}
