// Package memory provides an in-memory implementation of the storage interface.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/chronomorph/chronomorph/pkg/storage"
)

// MemoryStorage implements the Storage interface using in-memory maps.
type MemoryStorage struct {
	mu     sync.RWMutex
	states map[string][]string                  // hash -> content
	events map[string][]*storage.EventRecord    // agentID -> events in append order
	index  map[string]map[string]struct{}       // agentID -> set of event IDs
}

// NewMemoryStorage creates a new in-memory storage instance.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		states: make(map[string][]string),
		events: make(map[string][]*storage.EventRecord),
		index:  make(map[string]map[string]struct{}),
	}
}

// PutState stores a state under its hash. Re-storing an existing hash is a no-op.
func (m *MemoryStorage) PutState(ctx context.Context, hash string, content []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.states[hash]; exists {
		return nil
	}
	m.states[hash] = append([]string(nil), content...)
	return nil
}

// GetState retrieves a state by hash.
func (m *MemoryStorage) GetState(ctx context.Context, hash string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	content, exists := m.states[hash]
	if !exists {
		return nil, &storage.NotFoundError{
			EntityType: "state",
			ID:         hash,
		}
	}
	return append([]string(nil), content...), nil
}

// HasState reports whether a state exists for the given hash.
func (m *MemoryStorage) HasState(ctx context.Context, hash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.states[hash]
	return exists, nil
}

// AppendEvent appends an event record to an agent's log.
func (m *MemoryStorage) AppendEvent(ctx context.Context, ev *storage.EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ids, ok := m.index[ev.AgentID]; ok {
		if _, dup := ids[ev.ID]; dup {
			return &storage.DuplicateKeyError{
				EntityType: "event",
				ID:         ev.ID,
			}
		}
	} else {
		m.index[ev.AgentID] = make(map[string]struct{})
	}

	copied := *ev
	copied.ParentIDs = append([]string(nil), ev.ParentIDs...)
	m.events[ev.AgentID] = append(m.events[ev.AgentID], &copied)
	m.index[ev.AgentID][ev.ID] = struct{}{}
	return nil
}

// ListEvents returns an agent's events ordered by logical clock.
func (m *MemoryStorage) ListEvents(ctx context.Context, agentID string) ([]*storage.EventRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records, exists := m.events[agentID]
	if !exists {
		return nil, &storage.NotFoundError{
			EntityType: "agent",
			ID:         agentID,
		}
	}

	result := make([]*storage.EventRecord, len(records))
	for i, ev := range records {
		copied := *ev
		copied.ParentIDs = append([]string(nil), ev.ParentIDs...)
		result[i] = &copied
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Clock < result[j].Clock
	})
	return result, nil
}

// ListAgents returns the IDs of all agents with at least one event, sorted.
func (m *MemoryStorage) ListAgents(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agents := make([]string, 0, len(m.events))
	for id := range m.events {
		agents = append(agents, id)
	}
	sort.Strings(agents)
	return agents, nil
}

// Close closes the storage (no-op for memory storage).
func (m *MemoryStorage) Close() error {
	return nil
}
