package query

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronomorph/chronomorph/pkg/ledger"
	"github.com/chronomorph/chronomorph/pkg/mutation"
	"github.com/chronomorph/chronomorph/pkg/statestore"
	"github.com/chronomorph/chronomorph/pkg/storage"
	"github.com/chronomorph/chronomorph/pkg/storage/memory"
)

type fixture struct {
	gateway *Gateway
	engine  *mutation.Engine
	ledger  *ledger.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := memory.NewMemoryStorage()
	states := statestore.New(backend)
	lm := ledger.New(backend)
	return &fixture{
		gateway: NewGateway(lm, states),
		engine:  mutation.NewEngine(states, lm),
		ledger:  lm,
	}
}

func (f *fixture) propose(t *testing.T, agentID, base string, tokens ...string) *ledger.Event {
	t.Helper()
	ev, err := f.engine.Propose(context.Background(), agentID, base, mutation.Append(tokens...))
	require.NoError(t, err)
	return ev
}

func TestTimeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	genesis := f.propose(t, "A1", "", "a", "b")
	head := f.propose(t, "A1", genesis.ID, "c")

	entries, err := f.gateway.Timeline(ctx, "A1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, genesis.ID, entries[0].Event.ID)
	assert.Equal(t, []string{"a", "b"}, entries[0].Content)
	assert.Equal(t, head.ID, entries[1].Event.ID)
	assert.Equal(t, []string{"a", "b", "c"}, entries[1].Content)
	assert.Equal(t, 1.0, entries[1].Score)
	assert.Equal(t, head.EntropyDelta, entries[1].Delta)

	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i].Event.Clock, entries[i-1].Event.Clock)
	}
}

func TestTimelineUnknownAgent(t *testing.T) {
	f := newFixture(t)

	_, err := f.gateway.Timeline(context.Background(), "ghost")
	var nfe *storage.NotFoundError
	require.ErrorAs(t, err, &nfe)
}

func TestDiff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	genesis := f.propose(t, "A1", "", "a", "b", "c")
	next, err := f.engine.Propose(ctx, "A1", genesis.ID, &mutation.DeltaSpec{Ops: []mutation.Op{
		{Kind: mutation.OpRemove, Pos: 1, Count: 1},
		{Kind: mutation.OpAppend, Tokens: []string{"d"}},
	}})
	require.NoError(t, err)

	diff, err := f.gateway.Diff(ctx, genesis.ID, next.ID)
	require.NoError(t, err)

	// [a b c] -> [a c d]: b removed at position 1, d added at position 2.
	assert.Equal(t, []DiffToken{{Pos: 1, Token: "b"}}, diff.Removed)
	assert.Equal(t, []DiffToken{{Pos: 2, Token: "d"}}, diff.Added)
	assert.InDelta(t, 1.0/3.0, diff.ChangeRatio, 1e-9)
}

func TestDiffIdenticalContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	genesis := f.propose(t, "A1", "", "a")

	diff, err := f.gateway.Diff(ctx, genesis.ID, genesis.ID)
	require.NoError(t, err)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.Zero(t, diff.ChangeRatio)
}

func TestDiffAcrossAgents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.propose(t, "A1", "", "x")
	b := f.propose(t, "A2", "", "y")

	diff, err := f.gateway.Diff(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []DiffToken{{Pos: 0, Token: "y"}}, diff.Added)
	assert.Equal(t, []DiffToken{{Pos: 0, Token: "x"}}, diff.Removed)
	assert.Equal(t, 1.0, diff.ChangeRatio)
}

func TestDiffUnknownEvent(t *testing.T) {
	f := newFixture(t)

	f.propose(t, "A1", "", "a")

	_, err := f.gateway.Diff(context.Background(), "missing", "also-missing")
	var nfe *storage.NotFoundError
	require.ErrorAs(t, err, &nfe)
}

func TestRankAggregate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A1 accumulates two transitions, A2 one.
	g1 := f.propose(t, "A1", "", "a", "b")
	f.propose(t, "A1", g1.ID, "c", "d")
	f.propose(t, "A2", "", "a", "b")

	rankings, err := f.gateway.Rank(ctx, []string{"A2", "A1"}, MetricAggregate)
	require.NoError(t, err)
	require.Len(t, rankings, 2)
	assert.Equal(t, "A1", rankings[0].AgentID)
	assert.Equal(t, "A2", rankings[1].AgentID)
	assert.Greater(t, rankings[0].Value, rankings[1].Value)
}

func TestRankPeak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A1 reaches an all-distinct state, A2 a uniform one.
	f.propose(t, "A1", "", "a", "b", "c")
	f.propose(t, "A2", "", "a", "a", "a")

	rankings, err := f.gateway.Rank(ctx, []string{"A1", "A2"}, MetricPeak)
	require.NoError(t, err)
	require.Len(t, rankings, 2)
	assert.Equal(t, "A1", rankings[0].AgentID)
	assert.Equal(t, 1.0, rankings[0].Value)
	assert.Zero(t, rankings[1].Value)
}

func TestRankTieBreaksByAgentID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.propose(t, "B", "", "a", "b")
	f.propose(t, "A", "", "a", "b")

	rankings, err := f.gateway.Rank(ctx, []string{"B", "A"}, MetricAggregate)
	require.NoError(t, err)
	require.Len(t, rankings, 2)
	assert.Equal(t, rankings[0].Value, rankings[1].Value)
	assert.Equal(t, "A", rankings[0].AgentID)
}

func TestRankUnknownMetric(t *testing.T) {
	f := newFixture(t)

	_, err := f.gateway.Rank(context.Background(), nil, "median")
	assert.Error(t, err)
}

func TestAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The genesis transition to two distinct tokens scores well above the
	// default threshold; a duplicate append scores below it.
	genesis := f.propose(t, "A1", "", "a", "b")
	quiet, err := f.engine.Propose(ctx, "A1", genesis.ID, mutation.Append("a", "b"))
	require.NoError(t, err)
	require.Less(t, quiet.EntropyDelta, DefaultSpikeThreshold)

	alerts, err := f.gateway.Alerts(ctx, "A1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, genesis.ID, alerts[0].Event.ID)
	assert.Equal(t, DefaultSpikeThreshold, alerts[0].Threshold)
}

func TestAlertsThresholdAdjustable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.propose(t, "A1", "", "a", "b")

	f.gateway.SetSpikeThreshold(2.0)
	alerts, err := f.gateway.Alerts(ctx, "A1")
	require.NoError(t, err)
	assert.Empty(t, alerts)

	f.gateway.SetSpikeThreshold(0.01)
	alerts, err = f.gateway.Alerts(ctx, "A1")
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	genesis := f.propose(t, "A1", "", "base")
	b1 := f.propose(t, "A1", genesis.ID, "left")
	_, err := f.ledger.Fork(ctx, "A1", genesis.ID)
	require.NoError(t, err)
	b2 := f.propose(t, "A1", genesis.ID, "right")
	merge, err := f.engine.Merge(ctx, "A1", b1.ID, b2.ID, mutation.ReplaceAll("base", "left", "right"))
	require.NoError(t, err)

	s, err := f.gateway.Summary(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, "A1", s.AgentID)
	assert.Equal(t, 4, s.Events)
	assert.Equal(t, 1, s.Heads)
	assert.Equal(t, 1, s.Merges)
	assert.Equal(t, 1.0, s.PeakEntropy)
	assert.Greater(t, s.AggregateEntropy, 0.0)
	assert.Equal(t, genesis.Timestamp, s.GenesisAt)
	assert.Equal(t, merge.Timestamp, s.LatestAt)

	// The summary is directly exportable.
	payload, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"agent_id":"A1"`)
}
