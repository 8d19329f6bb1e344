package ledger

import "fmt"

// StaleBaseError is the optimistic-concurrency conflict: the named base event
// is no longer a current head of the agent's ledger. It is retryable by
// construction; callers re-fetch the head and retry.
type StaleBaseError struct {
	AgentID string
	BaseID  string
}

func (e *StaleBaseError) Error() string {
	if e.BaseID == "" {
		return fmt.Sprintf("agent %s already has a history; genesis append rejected", e.AgentID)
	}
	return fmt.Sprintf("base event %s is no longer a head of agent %s", e.BaseID, e.AgentID)
}

// DivergentMergeError indicates that a merge reconciliation could not be
// expressed as a valid delta from both parents. The caller must resolve it,
// typically by choosing one side.
type DivergentMergeError struct {
	AgentID string
	HeadA   string
	HeadB   string
	Reason  string
}

func (e *DivergentMergeError) Error() string {
	return fmt.Sprintf("cannot merge heads %s and %s of agent %s: %s", e.HeadA, e.HeadB, e.AgentID, e.Reason)
}
