// Package entropy computes normalized disorder scores for memory content and
// signed scores for transitions between two contents.
package entropy

import (
	"math"
	"sort"
)

// MaxScore is the upper bound of an absolute state score.
const MaxScore = 1.0

// DefaultStructuralWeight weights the structural-change term in Delta.
const DefaultStructuralWeight = 0.5

// Calculator scores memory content. Implementations must be pure and
// deterministic: identical inputs always yield identical outputs.
type Calculator interface {
	// Score returns the normalized entropy of the content in [0, MaxScore].
	Score(content []string) float64

	// Delta returns the signed transition score from one content to another.
	// Delta(c, c) is exactly zero.
	Delta(from, to []string) float64
}

// ShannonCalculator is the default Calculator. The absolute score is Shannon
// entropy over the token distribution normalized by the maximum achievable
// entropy for the content length. The transition score is the score difference
// plus a weighted structural-change term, so that two contents with equal raw
// entropy but different tokens still register a nonzero delta.
type ShannonCalculator struct {
	// StructuralWeight scales the structural-change term in Delta.
	StructuralWeight float64
}

// NewShannonCalculator returns a calculator with the default structural weight.
func NewShannonCalculator() *ShannonCalculator {
	return &ShannonCalculator{StructuralWeight: DefaultStructuralWeight}
}

// Score computes the normalized Shannon entropy of the token distribution.
// Empty and single-token contents score zero.
func (c *ShannonCalculator) Score(content []string) float64 {
	n := len(content)
	if n < 2 {
		return 0
	}

	freq := make(map[string]int, n)
	for _, tok := range content {
		freq[tok]++
	}

	// All tokens distinct is the uniform distribution at maximum entropy.
	if len(freq) == n {
		return MaxScore
	}

	// Map iteration order is random; floating-point addition is not
	// associative, so sum the terms in sorted order to keep equal contents
	// scoring exactly equal.
	counts := make([]int, 0, len(freq))
	for _, count := range freq {
		counts = append(counts, count)
	}
	sort.Ints(counts)

	var h float64
	total := float64(n)
	for _, count := range counts {
		p := float64(count) / total
		h -= p * math.Log2(p)
	}

	// log2(n) is the maximum entropy: all tokens distinct.
	norm := h / math.Log2(total)
	if norm > MaxScore {
		return MaxScore
	}
	return norm
}

// Delta computes the signed transition score between two contents.
func (c *ShannonCalculator) Delta(from, to []string) float64 {
	return c.Score(to) - c.Score(from) + c.StructuralWeight*ChangeRatio(from, to)
}

// ChangeRatio is the fraction of tokens added, removed, or reordered between
// two contents, based on the longest common subsequence. It is 0 for identical
// contents and 1 for fully disjoint ones.
func ChangeRatio(from, to []string) float64 {
	total := len(from) + len(to)
	if total == 0 {
		return 0
	}
	common := lcsLength(from, to)
	return 1 - 2*float64(common)/float64(total)
}

// lcsLength computes the longest common subsequence length with a rolling row.
func lcsLength(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
