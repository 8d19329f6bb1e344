package ledger

import (
	"time"

	"github.com/chronomorph/chronomorph/pkg/statestore"
	"github.com/chronomorph/chronomorph/pkg/storage"
)

// Event is a single recorded memory transition. Events are immutable once
// appended; the ledger hands out copies.
type Event struct {
	// ID is the globally unique event identifier.
	ID string `json:"id"`

	// AgentID is the owning agent.
	AgentID string `json:"agent_id"`

	// ParentIDs are the causal predecessors: empty for genesis, one for a
	// regular mutation, two for a merge convergence point.
	ParentIDs []string `json:"parent_ids,omitempty"`

	// FromHash references the pre-transition state; empty for genesis.
	FromHash statestore.Hash `json:"from_hash,omitempty"`

	// ToHash references the post-transition state.
	ToHash statestore.Hash `json:"to_hash"`

	// Clock is the per-agent logical clock assigned at append time.
	Clock uint64 `json:"clock"`

	// EntropyDelta is the signed transition score.
	EntropyDelta float64 `json:"entropy_delta"`

	// Timestamp is the wall-clock recording time. Informational only; ordering
	// is established by Clock and parent links.
	Timestamp time.Time `json:"timestamp"`
}

// IsGenesis reports whether the event has no causal predecessor.
func (e *Event) IsGenesis() bool {
	return len(e.ParentIDs) == 0
}

// IsMerge reports whether the event converges two branches.
func (e *Event) IsMerge() bool {
	return len(e.ParentIDs) == 2
}

// clone returns a deep copy so callers cannot mutate ledger internals.
func (e *Event) clone() *Event {
	copied := *e
	copied.ParentIDs = append([]string(nil), e.ParentIDs...)
	return &copied
}

func (e *Event) toRecord() *storage.EventRecord {
	return &storage.EventRecord{
		ID:           e.ID,
		AgentID:      e.AgentID,
		ParentIDs:    append([]string(nil), e.ParentIDs...),
		FromHash:     string(e.FromHash),
		ToHash:       string(e.ToHash),
		Clock:        e.Clock,
		EntropyDelta: e.EntropyDelta,
		Timestamp:    e.Timestamp,
	}
}

func eventFromRecord(rec *storage.EventRecord) *Event {
	return &Event{
		ID:           rec.ID,
		AgentID:      rec.AgentID,
		ParentIDs:    append([]string(nil), rec.ParentIDs...),
		FromHash:     statestore.Hash(rec.FromHash),
		ToHash:       statestore.Hash(rec.ToHash),
		Clock:        rec.Clock,
		EntropyDelta: rec.EntropyDelta,
		Timestamp:    rec.Timestamp,
	}
}
