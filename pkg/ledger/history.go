package ledger

import (
	"github.com/chronomorph/chronomorph/pkg/storage"
)

// History walks parent links from a starting event back to genesis, newest
// first. Each History call produces an independent, restartable traversal;
// clocks are unique per agent, so the order is deterministic. Merge ancestry
// fans out into both parent lines; every reachable ancestor is visited once.
type History struct {
	ledger   *agentLedger
	frontier map[string]*Event
	visited  map[string]struct{}
}

// History returns a traversal cursor starting at the given event.
func (m *Manager) History(agentID, eventID string) (*History, error) {
	l := m.ledgerFor(agentID, false)
	if l == nil {
		return nil, &storage.NotFoundError{EntityType: "agent", ID: agentID}
	}

	l.mu.Lock()
	start, exists := l.events[eventID]
	l.mu.Unlock()
	if !exists {
		return nil, &storage.NotFoundError{EntityType: "event", ID: eventID}
	}

	return &History{
		ledger:   l,
		frontier: map[string]*Event{start.ID: start},
		visited:  map[string]struct{}{start.ID: {}},
	}, nil
}

// Next returns the next event in the traversal, or false when exhausted.
func (h *History) Next() (*Event, bool) {
	if len(h.frontier) == 0 {
		return nil, false
	}

	var newest *Event
	for _, ev := range h.frontier {
		if newest == nil || ev.Clock > newest.Clock {
			newest = ev
		}
	}
	delete(h.frontier, newest.ID)

	h.ledger.mu.Lock()
	for _, parentID := range newest.ParentIDs {
		if _, seen := h.visited[parentID]; seen {
			continue
		}
		if parent, exists := h.ledger.events[parentID]; exists {
			h.frontier[parentID] = parent
			h.visited[parentID] = struct{}{}
		}
	}
	h.ledger.mu.Unlock()

	return newest.clone(), true
}

// Collect drains the traversal into a slice.
func (h *History) Collect() []*Event {
	var events []*Event
	for {
		ev, ok := h.Next()
		if !ok {
			return events
		}
		events = append(events, ev)
	}
}
