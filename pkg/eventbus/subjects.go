package eventbus

import "fmt"

// Subject layout:
//
//	mutation.<agent_id>.committed
//
// Agent IDs must not contain "." so subject segments stay unambiguous.

// SubjectCommitted returns the subject for an agent's committed events.
func SubjectCommitted(agentID string) string {
	return fmt.Sprintf("mutation.%s.committed", agentID)
}

// SubjectAllCommitted matches committed events from every agent.
const SubjectAllCommitted = "mutation.*.committed"
