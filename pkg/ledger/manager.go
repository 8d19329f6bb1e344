// Package ledger maintains, per agent, an append-only causal DAG of mutation
// events. Appends are compare-and-commit against the agent's current heads;
// concurrent appends on the same head resolve to exactly one winner.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chronomorph/chronomorph/pkg/eventbus"
	"github.com/chronomorph/chronomorph/pkg/logger"
	"github.com/chronomorph/chronomorph/pkg/storage"
)

// Append results reported to the MetricsRecorder.
const (
	AppendResultCommitted = "committed"
	AppendResultConflict  = "conflict"
)

// MetricsRecorder receives ledger instrumentation events.
type MetricsRecorder interface {
	RecordAppend(result string, seconds float64)
	RecordEntropyDelta(delta float64)
	SetBranchHeads(agentID string, heads int)
}

// Manager owns all per-agent ledgers. The event arena is indexed by event ID
// with explicit parent-ID references; there are no owning pointers between
// events, which keeps traversal and merging straightforward.
type Manager struct {
	backend storage.Storage
	log     logger.Logger
	bus     *eventbus.Bus
	metrics MetricsRecorder

	mu     sync.RWMutex
	agents map[string]*agentLedger
}

// agentLedger holds one agent's DAG, head set, and clock counter. The head
// set and clock are the only state shared between an agent's concurrent
// writers; both are guarded by mu.
type agentLedger struct {
	mu     sync.Mutex
	events map[string]*Event
	heads  map[string]struct{}
	clock  uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger attaches a logger.
func WithLogger(log logger.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithBus publishes committed events on the given bus.
func WithBus(bus *eventbus.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(rec MetricsRecorder) Option {
	return func(m *Manager) { m.metrics = rec }
}

// New creates a Manager over the given backend. Call Open to load persisted
// history before serving requests.
func New(backend storage.Storage, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		log:     logger.Global(),
		agents:  make(map[string]*agentLedger),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open rebuilds the in-memory ledgers from the persisted event log. Heads are
// recovered as events without children; fork heads with no appended event yet
// are ephemeral and not restored.
func (m *Manager) Open(ctx context.Context) error {
	agents, err := m.backend.ListAgents(ctx)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, agentID := range agents {
		records, err := m.backend.ListEvents(ctx, agentID)
		if err != nil {
			return fmt.Errorf("load events for agent %s: %w", agentID, err)
		}

		l := &agentLedger{
			events: make(map[string]*Event, len(records)),
			heads:  make(map[string]struct{}),
		}
		hasChild := make(map[string]struct{}, len(records))
		for _, rec := range records {
			ev := eventFromRecord(rec)
			l.events[ev.ID] = ev
			if ev.Clock > l.clock {
				l.clock = ev.Clock
			}
			for _, parent := range ev.ParentIDs {
				hasChild[parent] = struct{}{}
			}
		}
		for id := range l.events {
			if _, ok := hasChild[id]; !ok {
				l.heads[id] = struct{}{}
			}
		}
		m.agents[agentID] = l
		m.reportHeads(agentID, len(l.heads))

		m.log.InfoContext(ctx, "ledger loaded",
			"agent_id", agentID,
			"events", len(l.events),
			"heads", len(l.heads),
			"clock", l.clock,
		)
	}
	return nil
}

// Append atomically commits an event: every parent must be a current head
// (StaleBaseError otherwise), the next logical clock is assigned, the event is
// persisted, and the head set advances. A genesis event (no parents) is only
// accepted on an empty ledger. On any failure nothing is committed.
func (m *Manager) Append(ctx context.Context, ev *Event) (*Event, error) {
	if ev.AgentID == "" {
		return nil, fmt.Errorf("event agent ID cannot be empty")
	}
	if ev.ToHash == "" {
		return nil, fmt.Errorf("event to_hash cannot be empty")
	}
	if len(ev.ParentIDs) > 2 {
		return nil, fmt.Errorf("event cannot have more than two parents, got %d", len(ev.ParentIDs))
	}

	start := time.Now()
	l := m.ledgerFor(ev.AgentID, true)

	l.mu.Lock()
	defer l.mu.Unlock()

	if ev.IsGenesis() {
		if len(l.events) > 0 {
			m.recordAppend(AppendResultConflict, start)
			return nil, &StaleBaseError{AgentID: ev.AgentID}
		}
	} else {
		for _, parent := range ev.ParentIDs {
			if _, exists := l.events[parent]; !exists {
				return nil, &storage.NotFoundError{EntityType: "event", ID: parent}
			}
			if _, isHead := l.heads[parent]; !isHead {
				m.recordAppend(AppendResultConflict, start)
				return nil, &StaleBaseError{AgentID: ev.AgentID, BaseID: parent}
			}
		}
	}

	committed := ev.clone()
	if committed.ID == "" {
		committed.ID = uuid.NewString()
	}
	if _, exists := l.events[committed.ID]; exists {
		return nil, fmt.Errorf("event %s already appended", committed.ID)
	}
	committed.Clock = l.clock + 1
	if committed.Timestamp.IsZero() {
		committed.Timestamp = time.Now().UTC()
	}

	// Durability before visibility: the in-memory head only advances once the
	// event log write has been acknowledged.
	if err := m.backend.AppendEvent(ctx, committed.toRecord()); err != nil {
		return nil, err
	}

	l.events[committed.ID] = committed
	for _, parent := range committed.ParentIDs {
		delete(l.heads, parent)
	}
	l.heads[committed.ID] = struct{}{}
	l.clock = committed.Clock

	m.recordAppend(AppendResultCommitted, start)
	if m.metrics != nil {
		m.metrics.RecordEntropyDelta(committed.EntropyDelta)
	}
	m.reportHeads(committed.AgentID, len(l.heads))
	m.publish(ctx, committed)

	m.log.DebugContext(ctx, "event committed",
		"agent_id", committed.AgentID,
		"event_id", committed.ID,
		"clock", committed.Clock,
		"entropy_delta", committed.EntropyDelta,
		"parents", len(committed.ParentIDs),
	)
	return committed.clone(), nil
}

// Fork adds a past event to the agent's head set, creating an independent
// branch without discarding the existing one. Forking a current head is a
// no-op that returns the same head reference.
func (m *Manager) Fork(ctx context.Context, agentID, fromEventID string) (*Event, error) {
	l := m.ledgerFor(agentID, false)
	if l == nil {
		return nil, &storage.NotFoundError{EntityType: "agent", ID: agentID}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ev, exists := l.events[fromEventID]
	if !exists {
		return nil, &storage.NotFoundError{EntityType: "event", ID: fromEventID}
	}

	l.heads[fromEventID] = struct{}{}
	m.reportHeads(agentID, len(l.heads))

	m.log.InfoContext(ctx, "ledger forked",
		"agent_id", agentID,
		"from_event_id", fromEventID,
		"heads", len(l.heads),
	)
	return ev.clone(), nil
}

// GetEvent returns a single event by ID.
func (m *Manager) GetEvent(agentID, eventID string) (*Event, error) {
	l := m.ledgerFor(agentID, false)
	if l == nil {
		return nil, &storage.NotFoundError{EntityType: "agent", ID: agentID}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ev, exists := l.events[eventID]
	if !exists {
		return nil, &storage.NotFoundError{EntityType: "event", ID: eventID}
	}
	return ev.clone(), nil
}

// FindEvent looks up an event by ID across all agents.
func (m *Manager) FindEvent(eventID string) (*Event, error) {
	m.mu.RLock()
	agents := make([]*agentLedger, 0, len(m.agents))
	for _, l := range m.agents {
		agents = append(agents, l)
	}
	m.mu.RUnlock()

	for _, l := range agents {
		l.mu.Lock()
		ev, exists := l.events[eventID]
		l.mu.Unlock()
		if exists {
			return ev.clone(), nil
		}
	}
	return nil, &storage.NotFoundError{EntityType: "event", ID: eventID}
}

// Events returns all of an agent's events ordered by logical clock.
func (m *Manager) Events(agentID string) ([]*Event, error) {
	l := m.ledgerFor(agentID, false)
	if l == nil {
		return nil, &storage.NotFoundError{EntityType: "agent", ID: agentID}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	events := make([]*Event, 0, len(l.events))
	for _, ev := range l.events {
		events = append(events, ev.clone())
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Clock < events[j].Clock
	})
	return events, nil
}

// Heads returns the agent's current heads ordered by logical clock.
func (m *Manager) Heads(agentID string) ([]*Event, error) {
	l := m.ledgerFor(agentID, false)
	if l == nil {
		return nil, &storage.NotFoundError{EntityType: "agent", ID: agentID}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	heads := make([]*Event, 0, len(l.heads))
	for id := range l.heads {
		heads = append(heads, l.events[id].clone())
	}
	sort.Slice(heads, func(i, j int) bool {
		return heads[i].Clock < heads[j].Clock
	})
	return heads, nil
}

// Agents returns the IDs of all known agents, sorted.
func (m *Manager) Agents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agents := make([]string, 0, len(m.agents))
	for id := range m.agents {
		agents = append(agents, id)
	}
	sort.Strings(agents)
	return agents
}

// HasAgent reports whether the agent has a ledger.
func (m *Manager) HasAgent(agentID string) bool {
	return m.ledgerFor(agentID, false) != nil
}

func (m *Manager) ledgerFor(agentID string, create bool) *agentLedger {
	m.mu.RLock()
	l, exists := m.agents[agentID]
	m.mu.RUnlock()
	if exists || !create {
		return l
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, exists = m.agents[agentID]; exists {
		return l
	}
	l = &agentLedger{
		events: make(map[string]*Event),
		heads:  make(map[string]struct{}),
	}
	m.agents[agentID] = l
	return l
}

func (m *Manager) recordAppend(result string, start time.Time) {
	if m.metrics != nil {
		m.metrics.RecordAppend(result, time.Since(start).Seconds())
	}
}

func (m *Manager) reportHeads(agentID string, heads int) {
	if m.metrics != nil {
		m.metrics.SetBranchHeads(agentID, heads)
	}
}

func (m *Manager) publish(ctx context.Context, ev *Event) {
	if m.bus == nil {
		return
	}
	env := &eventbus.CommitEnvelope{
		EventID:      ev.ID,
		AgentID:      ev.AgentID,
		ParentIDs:    append([]string(nil), ev.ParentIDs...),
		ToHash:       string(ev.ToHash),
		Clock:        ev.Clock,
		EntropyDelta: ev.EntropyDelta,
		Timestamp:    ev.Timestamp,
	}
	payload, err := env.Marshal()
	if err != nil {
		m.log.Warn("failed to marshal commit envelope", "event_id", ev.ID, "error", err)
		return
	}
	if err := m.bus.Publish(ctx, eventbus.SubjectCommitted(ev.AgentID), payload); err != nil {
		m.log.Warn("failed to publish commit", "event_id", ev.ID, "error", err)
	}
}
