package eventbus

import (
	"encoding/json"
	"time"
)

// CommitEnvelope is the wire form of a committed mutation event published on
// the bus. It carries enough for a consumer to render a timeline entry without
// a follow-up ledger read.
type CommitEnvelope struct {
	EventID      string    `json:"event_id"`
	AgentID      string    `json:"agent_id"`
	ParentIDs    []string  `json:"parent_ids,omitempty"`
	ToHash       string    `json:"to_hash"`
	Clock        uint64    `json:"clock"`
	EntropyDelta float64   `json:"entropy_delta"`
	Timestamp    time.Time `json:"timestamp"`
}

// Marshal encodes the envelope as JSON.
func (e *CommitEnvelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalCommitEnvelope decodes a JSON envelope.
func UnmarshalCommitEnvelope(data []byte) (*CommitEnvelope, error) {
	var env CommitEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
