package mutation

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/chronomorph/chronomorph/pkg/entropy"
	"github.com/chronomorph/chronomorph/pkg/ledger"
	"github.com/chronomorph/chronomorph/pkg/logger"
	"github.com/chronomorph/chronomorph/pkg/statestore"
)

// DefaultMaxRetries bounds automatic retries after an append conflict.
const DefaultMaxRetries = 3

// DefaultRetryRate paces conflict retries, in attempts per second.
const DefaultRetryRate = rate.Limit(50)

// Engine applies deltas to agent memory and commits the resulting transitions.
type Engine struct {
	states  *statestore.Store
	ledger  *ledger.Manager
	calc    entropy.Calculator
	log     logger.Logger
	limiter *rate.Limiter

	maxRetries int
}

// Option configures an Engine.
type Option func(*Engine)

// WithCalculator replaces the default entropy calculator.
func WithCalculator(calc entropy.Calculator) Option {
	return func(e *Engine) { e.calc = calc }
}

// WithLogger attaches a logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMaxRetries bounds the automatic retries after a stale-base conflict.
func WithMaxRetries(n int) Option {
	return func(e *Engine) { e.maxRetries = n }
}

// WithRetryRate sets the pacing of conflict retries.
func WithRetryRate(limit rate.Limit) Option {
	return func(e *Engine) { e.limiter = rate.NewLimiter(limit, 1) }
}

// NewEngine creates an Engine over the given state store and ledger.
func NewEngine(states *statestore.Store, lm *ledger.Manager, opts ...Option) *Engine {
	e := &Engine{
		states:     states,
		ledger:     lm,
		calc:       entropy.NewShannonCalculator(),
		log:        logger.Global(),
		limiter:    rate.NewLimiter(DefaultRetryRate, 1),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Propose applies the spec to the content referenced by baseEventID and commits
// the transition. An empty baseEventID proposes a genesis event over empty
// content. The commit is all-or-nothing at the ledger level; content written to
// the state store by a failed attempt is content-addressed and harmless.
//
// A stale-base conflict is retried automatically: the engine re-fetches the
// agent's sole current head and re-applies the spec, up to the configured
// retry bound and paced by the rate limiter. When the head set is ambiguous
// (the ledger has unmerged branches) or the retries are exhausted, the
// conflict is surfaced to the caller. All other errors propagate unmodified.
func (e *Engine) Propose(ctx context.Context, agentID, baseEventID string, spec *DeltaSpec) (*ledger.Event, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent ID cannot be empty")
	}

	for attempt := 0; ; attempt++ {
		ev, err := e.applyAndAppend(ctx, agentID, baseEventID, spec)
		if err == nil {
			return ev, nil
		}

		var stale *ledger.StaleBaseError
		if !errors.As(err, &stale) || attempt >= e.maxRetries {
			return nil, err
		}

		heads, headsErr := e.ledger.Heads(agentID)
		if headsErr != nil {
			return nil, headsErr
		}
		if len(heads) != 1 {
			// Branched history: the engine cannot pick a base on the
			// caller's behalf.
			return nil, stale
		}
		baseEventID = heads[0].ID

		if waitErr := e.limiter.Wait(ctx); waitErr != nil {
			return nil, waitErr
		}
		e.log.DebugContext(ctx, "retrying mutation after conflict",
			"agent_id", agentID,
			"base_event_id", baseEventID,
			"attempt", attempt+1,
		)
	}
}

// Merge reconciles two branch heads into a single convergence event. The spec
// is applied to both parents' contents independently; the merge commits only
// when both applications are valid and produce identical content, otherwise a
// DivergentMergeError is returned for the caller to resolve. The two-parent
// append still conflicts if either head has moved.
func (e *Engine) Merge(ctx context.Context, agentID, headA, headB string, spec *DeltaSpec) (*ledger.Event, error) {
	if headA == headB {
		return nil, fmt.Errorf("merge requires two distinct heads, got %q twice", headA)
	}

	contentA, err := e.contentOf(ctx, agentID, headA)
	if err != nil {
		return nil, err
	}
	contentB, err := e.contentOf(ctx, agentID, headB)
	if err != nil {
		return nil, err
	}

	mergedA, err := spec.Apply(contentA)
	if err != nil {
		return nil, &ledger.DivergentMergeError{
			AgentID: agentID, HeadA: headA, HeadB: headB,
			Reason: fmt.Sprintf("delta not applicable to %s: %v", headA, err),
		}
	}
	mergedB, err := spec.Apply(contentB)
	if err != nil {
		return nil, &ledger.DivergentMergeError{
			AgentID: agentID, HeadA: headA, HeadB: headB,
			Reason: fmt.Sprintf("delta not applicable to %s: %v", headB, err),
		}
	}
	if !equalTokens(mergedA, mergedB) {
		return nil, &ledger.DivergentMergeError{
			AgentID: agentID, HeadA: headA, HeadB: headB,
			Reason: "delta produces different content from each parent",
		}
	}

	toHash, err := e.states.Put(ctx, mergedA)
	if err != nil {
		return nil, err
	}

	// The transition score of a convergence event averages the score from
	// each parent line.
	delta := (e.calc.Delta(contentA, mergedA) + e.calc.Delta(contentB, mergedA)) / 2

	ev, err := e.ledger.Append(ctx, &ledger.Event{
		AgentID:      agentID,
		ParentIDs:    []string{headA, headB},
		ToHash:       toHash,
		EntropyDelta: delta,
	})
	if err != nil {
		return nil, err
	}

	e.log.InfoContext(ctx, "branches merged",
		"agent_id", agentID,
		"event_id", ev.ID,
		"head_a", headA,
		"head_b", headB,
		"entropy_delta", ev.EntropyDelta,
	)
	return ev, nil
}

// applyAndAppend performs one end-to-end attempt: resolve base content, apply
// the spec, persist the new state, score the transition, append the event.
func (e *Engine) applyAndAppend(ctx context.Context, agentID, baseEventID string, spec *DeltaSpec) (*ledger.Event, error) {
	var (
		from      []string
		fromHash  statestore.Hash
		parentIDs []string
	)
	if baseEventID != "" {
		base, err := e.ledger.GetEvent(agentID, baseEventID)
		if err != nil {
			return nil, err
		}
		from, err = e.states.Get(ctx, base.ToHash)
		if err != nil {
			return nil, err
		}
		fromHash = base.ToHash
		parentIDs = []string{baseEventID}
	}

	to, err := spec.Apply(from)
	if err != nil {
		return nil, err
	}

	toHash, err := e.states.Put(ctx, to)
	if err != nil {
		return nil, err
	}

	ev, err := e.ledger.Append(ctx, &ledger.Event{
		AgentID:      agentID,
		ParentIDs:    parentIDs,
		FromHash:     fromHash,
		ToHash:       toHash,
		EntropyDelta: e.calc.Delta(from, to),
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// contentOf resolves the content referenced by an event's post-transition hash.
func (e *Engine) contentOf(ctx context.Context, agentID, eventID string) ([]string, error) {
	ev, err := e.ledger.GetEvent(agentID, eventID)
	if err != nil {
		return nil, err
	}
	return e.states.Get(ctx, ev.ToHash)
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
