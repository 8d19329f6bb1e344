// Package query is the read-only gateway over the ledger and state store. It
// serves timelines, structural diffs, entropy rankings, spike alerts, and
// exportable summaries, and never touches a write path.
package query

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/chronomorph/chronomorph/pkg/entropy"
	"github.com/chronomorph/chronomorph/pkg/ledger"
	"github.com/chronomorph/chronomorph/pkg/statestore"
)

// Rank metrics.
const (
	// MetricAggregate ranks by the sum of absolute transition scores.
	MetricAggregate = "aggregate"

	// MetricPeak ranks by the highest absolute state score reached.
	MetricPeak = "peak"
)

// DefaultSpikeThreshold is the transition score above which an event is
// reported as an entropy spike.
const DefaultSpikeThreshold = 0.2

// TimelineEntry pairs an event with its resolved content and scores.
type TimelineEntry struct {
	Event   *ledger.Event `json:"event"`
	Content []string      `json:"content"`
	Score   float64       `json:"score"`
	Delta   float64       `json:"delta"`
}

// Ranking is one agent's position in a Rank result.
type Ranking struct {
	AgentID string  `json:"agent_id"`
	Value   float64 `json:"value"`
}

// Alert marks an event whose transition score exceeded the spike threshold.
type Alert struct {
	Event     *ledger.Event `json:"event"`
	Threshold float64       `json:"threshold"`
}

// Summary is a JSON-exportable aggregate of one agent's recorded history.
type Summary struct {
	AgentID          string    `json:"agent_id"`
	Events           int       `json:"events"`
	Heads            int       `json:"heads"`
	Merges           int       `json:"merges"`
	PeakEntropy      float64   `json:"peak_entropy"`
	AggregateEntropy float64   `json:"aggregate_entropy"`
	GenesisAt        time.Time `json:"genesis_at"`
	LatestAt         time.Time `json:"latest_at"`
}

// Gateway answers read queries. It holds no persistent state of its own.
type Gateway struct {
	ledger *ledger.Manager
	states *statestore.Store
	calc   entropy.Calculator

	mu             sync.RWMutex
	spikeThreshold float64
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCalculator replaces the default entropy calculator.
func WithCalculator(calc entropy.Calculator) Option {
	return func(g *Gateway) { g.calc = calc }
}

// WithSpikeThreshold sets the alert threshold.
func WithSpikeThreshold(threshold float64) Option {
	return func(g *Gateway) { g.spikeThreshold = threshold }
}

// NewGateway creates a Gateway over the given ledger and state store.
func NewGateway(lm *ledger.Manager, states *statestore.Store, opts ...Option) *Gateway {
	g := &Gateway{
		ledger:         lm,
		states:         states,
		calc:           entropy.NewShannonCalculator(),
		spikeThreshold: DefaultSpikeThreshold,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetSpikeThreshold updates the alert threshold at runtime.
func (g *Gateway) SetSpikeThreshold(threshold float64) {
	g.mu.Lock()
	g.spikeThreshold = threshold
	g.mu.Unlock()
}

// SpikeThreshold returns the current alert threshold.
func (g *Gateway) SpikeThreshold() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.spikeThreshold
}

// Timeline returns the agent's full history in logical-clock order, each event
// paired with its content and scores.
func (g *Gateway) Timeline(ctx context.Context, agentID string) ([]TimelineEntry, error) {
	events, err := g.ledger.Events(agentID)
	if err != nil {
		return nil, err
	}

	entries := make([]TimelineEntry, 0, len(events))
	for _, ev := range events {
		content, err := g.states.Get(ctx, ev.ToHash)
		if err != nil {
			return nil, fmt.Errorf("resolve state for event %s: %w", ev.ID, err)
		}
		entries = append(entries, TimelineEntry{
			Event:   ev,
			Content: content,
			Score:   g.calc.Score(content),
			Delta:   ev.EntropyDelta,
		})
	}
	return entries, nil
}

// Rank orders agents by the given metric, highest first, breaking ties by
// agent ID.
func (g *Gateway) Rank(ctx context.Context, agentIDs []string, metric string) ([]Ranking, error) {
	if metric != MetricAggregate && metric != MetricPeak {
		return nil, fmt.Errorf("unknown rank metric %q", metric)
	}

	rankings := make([]Ranking, 0, len(agentIDs))
	for _, agentID := range agentIDs {
		entries, err := g.Timeline(ctx, agentID)
		if err != nil {
			return nil, err
		}

		var value float64
		for _, entry := range entries {
			switch metric {
			case MetricAggregate:
				value += math.Abs(entry.Delta)
			case MetricPeak:
				if score := math.Abs(entry.Score); score > value {
					value = score
				}
			}
		}
		rankings = append(rankings, Ranking{AgentID: agentID, Value: value})
	}

	sort.Slice(rankings, func(i, j int) bool {
		if rankings[i].Value != rankings[j].Value {
			return rankings[i].Value > rankings[j].Value
		}
		return rankings[i].AgentID < rankings[j].AgentID
	})
	return rankings, nil
}

// Alerts returns the agent's events whose transition score exceeded the spike
// threshold, in logical-clock order.
func (g *Gateway) Alerts(ctx context.Context, agentID string) ([]Alert, error) {
	events, err := g.ledger.Events(agentID)
	if err != nil {
		return nil, err
	}

	threshold := g.SpikeThreshold()
	var alerts []Alert
	for _, ev := range events {
		if ev.EntropyDelta > threshold {
			alerts = append(alerts, Alert{Event: ev, Threshold: threshold})
		}
	}
	return alerts, nil
}

// Summary aggregates the agent's history into an exportable report.
func (g *Gateway) Summary(ctx context.Context, agentID string) (*Summary, error) {
	entries, err := g.Timeline(ctx, agentID)
	if err != nil {
		return nil, err
	}
	heads, err := g.ledger.Heads(agentID)
	if err != nil {
		return nil, err
	}

	s := &Summary{AgentID: agentID, Events: len(entries), Heads: len(heads)}
	for i, entry := range entries {
		if entry.Event.IsMerge() {
			s.Merges++
		}
		if score := math.Abs(entry.Score); score > s.PeakEntropy {
			s.PeakEntropy = score
		}
		s.AggregateEntropy += math.Abs(entry.Delta)
		if i == 0 {
			s.GenesisAt = entry.Event.Timestamp
		}
		s.LatestAt = entry.Event.Timestamp
	}
	return s, nil
}
