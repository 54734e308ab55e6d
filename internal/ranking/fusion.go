package ranking

import (
	"math"
	"sort"

	"github.com/dshills/recall-mcp/pkg/types"
)

// Fixed fusion weights. Lexical relevance is trusted more than embedding
// similarity.
const (
	LexicalWeight = 0.6
	VectorWeight  = 0.4
)

// Merge fuses lexical and vector results into at most limit candidates,
// ordered by combined score. An id found in only one list scores 0 on the
// other dimension. Ties keep their first-seen order.
func Merge(lexical []types.LexicalResult, vector []types.VectorResult, limit int) []types.ScoredCandidate {
	lexMax := maxAbsRank(lexical)
	vecMax := maxDistance(vector)

	byID := make(map[string]int, len(lexical)+len(vector))
	out := make([]types.ScoredCandidate, 0, len(lexical)+len(vector))

	for _, r := range lexical {
		score := math.Abs(r.Rank) / lexMax
		if i, ok := byID[r.ID]; ok {
			out[i].LexicalScore = math.Max(out[i].LexicalScore, score)
			continue
		}
		byID[r.ID] = len(out)
		out = append(out, types.ScoredCandidate{Memory: r.Memory, LexicalScore: score})
	}

	for _, r := range vector {
		score := 1 - r.Distance/vecMax
		if i, ok := byID[r.ID]; ok {
			out[i].VectorScore = math.Max(out[i].VectorScore, score)
			continue
		}
		byID[r.ID] = len(out)
		out = append(out, types.ScoredCandidate{Memory: r.Memory, VectorScore: score})
	}

	for i := range out {
		out[i].CombinedScore = LexicalWeight*out[i].LexicalScore + VectorWeight*out[i].VectorScore
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CombinedScore > out[j].CombinedScore
	})
	return truncate(out, limit)
}

// FromLexical converts lexical-only results into candidates scored by
// |Rank|, which is the decayed absolute score once ApplyRecencyLexical has
// run. Nothing is normalized. Order is preserved.
func FromLexical(lexical []types.LexicalResult) []types.ScoredCandidate {
	out := make([]types.ScoredCandidate, len(lexical))
	for i, r := range lexical {
		score := math.Abs(r.Rank)
		out[i] = types.ScoredCandidate{
			Memory:        r.Memory,
			LexicalScore:  score,
			CombinedScore: score,
			RecencyFactor: r.RecencyFactor,
		}
	}
	return out
}

// maxAbsRank returns the normalization divisor for lexical ranks, 1.0 when
// the set is empty or all zero.
func maxAbsRank(results []types.LexicalResult) float64 {
	m := 0.0
	for _, r := range results {
		m = math.Max(m, math.Abs(r.Rank))
	}
	if m == 0 {
		return 1
	}
	return m
}

// maxDistance returns the normalization divisor for distances, with the
// same zero guard.
func maxDistance(results []types.VectorResult) float64 {
	m := 0.0
	for _, r := range results {
		m = math.Max(m, r.Distance)
	}
	if m == 0 {
		return 1
	}
	return m
}

func truncate[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
