package query

import (
	"context"
	"fmt"

	"github.com/chronomorph/chronomorph/pkg/entropy"
)

// DiffToken is one token added or removed by a transition, with its position
// in the content it belongs to.
type DiffToken struct {
	Pos   int    `json:"pos"`
	Token string `json:"token"`
}

// Diff is the structural delta between two recorded states: the edit script
// from the first event's content to the second's, plus the change ratio used
// by the entropy calculator.
type Diff struct {
	EventA      string      `json:"event_a"`
	EventB      string      `json:"event_b"`
	Added       []DiffToken `json:"added,omitempty"`
	Removed     []DiffToken `json:"removed,omitempty"`
	ChangeRatio float64     `json:"change_ratio"`
}

// Diff computes the structural delta between two events, looked up across all
// agents. Removed positions refer to the first event's content, added
// positions to the second's.
func (g *Gateway) Diff(ctx context.Context, eventA, eventB string) (*Diff, error) {
	evA, err := g.ledger.FindEvent(eventA)
	if err != nil {
		return nil, err
	}
	evB, err := g.ledger.FindEvent(eventB)
	if err != nil {
		return nil, err
	}

	contentA, err := g.states.Get(ctx, evA.ToHash)
	if err != nil {
		return nil, fmt.Errorf("resolve state for event %s: %w", eventA, err)
	}
	contentB, err := g.states.Get(ctx, evB.ToHash)
	if err != nil {
		return nil, fmt.Errorf("resolve state for event %s: %w", eventB, err)
	}

	added, removed := editScript(contentA, contentB)
	return &Diff{
		EventA:      eventA,
		EventB:      eventB,
		Added:       added,
		Removed:     removed,
		ChangeRatio: entropy.ChangeRatio(contentA, contentB),
	}, nil
}

// editScript derives the added and removed tokens from a longest common
// subsequence table over the two contents.
func editScript(a, b []string) (added, removed []DiffToken) {
	table := make([][]int, len(a)+1)
	for i := range table {
		table[i] = make([]int, len(b)+1)
	}
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				table[i][j] = table[i-1][j-1] + 1
			} else if table[i-1][j] >= table[i][j-1] {
				table[i][j] = table[i-1][j]
			} else {
				table[i][j] = table[i][j-1]
			}
		}
	}

	i, j := len(a), len(b)
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && a[i-1] == b[j-1]:
			i--
			j--
		case j > 0 && (i == 0 || table[i][j-1] >= table[i-1][j]):
			added = append(added, DiffToken{Pos: j - 1, Token: b[j-1]})
			j--
		default:
			removed = append(removed, DiffToken{Pos: i - 1, Token: a[i-1]})
			i--
		}
	}

	reverse(added)
	reverse(removed)
	return added, removed
}

func reverse(tokens []DiffToken) {
	for i, j := 0, len(tokens)-1; i < j; i, j = i+1, j-1 {
		tokens[i], tokens[j] = tokens[j], tokens[i]
	}
}
