package statestore

import "fmt"

// IntegrityError indicates a detected hash collision: two distinct contents
// mapped to the same fingerprint. It is fatal for the affected store; writes
// are refused until operator intervention (process restart over verified data).
type IntegrityError struct {
	Hash   string
	Reason string
}

func (e *IntegrityError) Error() string {
	if e.Hash == "" {
		return fmt.Sprintf("state store integrity error: %s", e.Reason)
	}
	return fmt.Sprintf("state store integrity error for hash %s: %s", e.Hash, e.Reason)
}
