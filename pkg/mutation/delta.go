// Package mutation validates and applies proposed edits to an agent's memory
// content, scores the resulting transition, and commits it to the agent's
// ledger. The engine holds no persistent state of its own.
package mutation

import "fmt"

// OpKind identifies a single edit operation within a DeltaSpec.
type OpKind string

const (
	// OpAppend adds tokens to the end of the content.
	OpAppend OpKind = "append"

	// OpInsert inserts tokens before position Pos.
	OpInsert OpKind = "insert"

	// OpRemove deletes Count tokens starting at position Pos.
	OpRemove OpKind = "remove"

	// OpReplace overwrites tokens starting at position Pos.
	OpReplace OpKind = "replace"

	// OpReplaceAll discards the content and substitutes Tokens wholesale.
	// This is the usual way to reconcile a divergent merge.
	OpReplaceAll OpKind = "replaceAll"
)

// Op is one edit operation. Pos and Count are interpreted against the content
// as it stands after the preceding ops in the spec have been applied.
type Op struct {
	Kind   OpKind   `json:"kind"`
	Pos    int      `json:"pos,omitempty"`
	Count  int      `json:"count,omitempty"`
	Tokens []string `json:"tokens,omitempty"`
}

// DeltaSpec is an ordered sequence of edit operations.
type DeltaSpec struct {
	Ops []Op `json:"ops"`
}

// Append returns a single-op spec appending the given tokens.
func Append(tokens ...string) *DeltaSpec {
	return &DeltaSpec{Ops: []Op{{Kind: OpAppend, Tokens: tokens}}}
}

// ReplaceAll returns a single-op spec substituting the whole content.
func ReplaceAll(tokens ...string) *DeltaSpec {
	return &DeltaSpec{Ops: []Op{{Kind: OpReplaceAll, Tokens: tokens}}}
}

// Apply runs the spec against the given content and returns the new content.
// The input is never modified. Positions outside the current bounds yield an
// InvalidDeltaError naming the offending op.
func (s *DeltaSpec) Apply(content []string) ([]string, error) {
	if s == nil || len(s.Ops) == 0 {
		return nil, &InvalidDeltaError{Reason: "spec contains no operations"}
	}

	result := append([]string(nil), content...)
	for i, op := range s.Ops {
		var err error
		result, err = applyOp(result, op)
		if err != nil {
			if ide, ok := err.(*InvalidDeltaError); ok {
				ide.OpIndex = i
			}
			return nil, err
		}
	}
	return result, nil
}

func applyOp(content []string, op Op) ([]string, error) {
	switch op.Kind {
	case OpAppend:
		if len(op.Tokens) == 0 {
			return nil, &InvalidDeltaError{Reason: "append requires at least one token"}
		}
		return append(content, op.Tokens...), nil

	case OpInsert:
		if len(op.Tokens) == 0 {
			return nil, &InvalidDeltaError{Reason: "insert requires at least one token"}
		}
		if op.Pos < 0 || op.Pos > len(content) {
			return nil, &InvalidDeltaError{
				Reason: fmt.Sprintf("insert position %d outside content of length %d", op.Pos, len(content)),
			}
		}
		result := make([]string, 0, len(content)+len(op.Tokens))
		result = append(result, content[:op.Pos]...)
		result = append(result, op.Tokens...)
		result = append(result, content[op.Pos:]...)
		return result, nil

	case OpRemove:
		if op.Count < 1 {
			return nil, &InvalidDeltaError{Reason: "remove requires a positive count"}
		}
		if op.Pos < 0 || op.Pos+op.Count > len(content) {
			return nil, &InvalidDeltaError{
				Reason: fmt.Sprintf("remove range [%d,%d) outside content of length %d", op.Pos, op.Pos+op.Count, len(content)),
			}
		}
		result := make([]string, 0, len(content)-op.Count)
		result = append(result, content[:op.Pos]...)
		result = append(result, content[op.Pos+op.Count:]...)
		return result, nil

	case OpReplace:
		if len(op.Tokens) == 0 {
			return nil, &InvalidDeltaError{Reason: "replace requires at least one token"}
		}
		if op.Pos < 0 || op.Pos+len(op.Tokens) > len(content) {
			return nil, &InvalidDeltaError{
				Reason: fmt.Sprintf("replace range [%d,%d) outside content of length %d", op.Pos, op.Pos+len(op.Tokens), len(content)),
			}
		}
		result := append([]string(nil), content...)
		copy(result[op.Pos:], op.Tokens)
		return result, nil

	case OpReplaceAll:
		return append([]string(nil), op.Tokens...), nil

	default:
		return nil, &InvalidDeltaError{Reason: fmt.Sprintf("unknown operation kind %q", op.Kind)}
	}
}
