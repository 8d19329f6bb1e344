package mutation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeltaApply(t *testing.T) {
	tests := []struct {
		name    string
		content []string
		spec    *DeltaSpec
		want    []string
	}{
		{
			name: "append to empty",
			spec: Append("x", "y"),
			want: []string{"x", "y"},
		},
		{
			name:    "append to existing",
			content: []string{"a"},
			spec:    Append("b"),
			want:    []string{"a", "b"},
		},
		{
			name:    "insert at front",
			content: []string{"b", "c"},
			spec:    &DeltaSpec{Ops: []Op{{Kind: OpInsert, Pos: 0, Tokens: []string{"a"}}}},
			want:    []string{"a", "b", "c"},
		},
		{
			name:    "insert at end",
			content: []string{"a"},
			spec:    &DeltaSpec{Ops: []Op{{Kind: OpInsert, Pos: 1, Tokens: []string{"b"}}}},
			want:    []string{"a", "b"},
		},
		{
			name:    "remove middle",
			content: []string{"a", "b", "c", "d"},
			spec:    &DeltaSpec{Ops: []Op{{Kind: OpRemove, Pos: 1, Count: 2}}},
			want:    []string{"a", "d"},
		},
		{
			name:    "replace in place",
			content: []string{"a", "b", "c"},
			spec:    &DeltaSpec{Ops: []Op{{Kind: OpReplace, Pos: 1, Tokens: []string{"B", "C"}}}},
			want:    []string{"a", "B", "C"},
		},
		{
			name:    "replace all",
			content: []string{"a", "b"},
			spec:    ReplaceAll("x"),
			want:    []string{"x"},
		},
		{
			name:    "replace all with empty",
			content: []string{"a", "b"},
			spec:    &DeltaSpec{Ops: []Op{{Kind: OpReplaceAll}}},
			want:    nil,
		},
		{
			name:    "ops apply in order",
			content: []string{"a"},
			spec: &DeltaSpec{Ops: []Op{
				{Kind: OpAppend, Tokens: []string{"b", "c"}},
				{Kind: OpRemove, Pos: 0, Count: 1},
				{Kind: OpInsert, Pos: 1, Tokens: []string{"x"}},
			}},
			want: []string{"b", "x", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.spec.Apply(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeltaApplyDoesNotMutateInput(t *testing.T) {
	content := []string{"a", "b", "c"}
	_, err := (&DeltaSpec{Ops: []Op{{Kind: OpReplace, Pos: 0, Tokens: []string{"X"}}}}).Apply(content)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, content)
}

func TestDeltaApplyInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content []string
		spec    *DeltaSpec
	}{
		{"nil spec", nil, nil},
		{"empty spec", nil, &DeltaSpec{}},
		{"append without tokens", nil, &DeltaSpec{Ops: []Op{{Kind: OpAppend}}}},
		{"insert past end", []string{"a"}, &DeltaSpec{Ops: []Op{{Kind: OpInsert, Pos: 2, Tokens: []string{"x"}}}}},
		{"insert negative", []string{"a"}, &DeltaSpec{Ops: []Op{{Kind: OpInsert, Pos: -1, Tokens: []string{"x"}}}}},
		{"remove past end", []string{"a", "b"}, &DeltaSpec{Ops: []Op{{Kind: OpRemove, Pos: 1, Count: 2}}}},
		{"remove zero count", []string{"a"}, &DeltaSpec{Ops: []Op{{Kind: OpRemove, Pos: 0}}}},
		{"replace past end", []string{"a"}, &DeltaSpec{Ops: []Op{{Kind: OpReplace, Pos: 0, Tokens: []string{"x", "y"}}}}},
		{"unknown kind", []string{"a"}, &DeltaSpec{Ops: []Op{{Kind: "rotate"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.spec.Apply(tt.content)
			var ide *InvalidDeltaError
			require.ErrorAs(t, err, &ide)
		})
	}
}

func TestInvalidDeltaErrorNamesOp(t *testing.T) {
	spec := &DeltaSpec{Ops: []Op{
		{Kind: OpAppend, Tokens: []string{"a"}},
		{Kind: OpRemove, Pos: 5, Count: 1},
	}}
	_, err := spec.Apply(nil)
	var ide *InvalidDeltaError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, 1, ide.OpIndex)
}
