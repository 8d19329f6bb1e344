package mutation

import "fmt"

// InvalidDeltaError indicates a malformed edit operation or one that references
// positions outside the current content bounds. Nothing is committed.
type InvalidDeltaError struct {
	OpIndex int
	Reason  string
}

func (e *InvalidDeltaError) Error() string {
	return fmt.Sprintf("invalid delta op %d: %s", e.OpIndex, e.Reason)
}
