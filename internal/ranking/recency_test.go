package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/recall-mcp/pkg/types"
)

var refTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(d float64) time.Time {
	return refTime.Add(-time.Duration(d * 24 * float64(time.Hour)))
}

func TestFactor(t *testing.T) {
	full := Recency{AgingFactor: 1.0, HalfLifeDays: 14}
	assert.InDelta(t, 1.0, Factor(daysAgo(0), full, refTime), 0.001)
	assert.InDelta(t, 0.5, Factor(daysAgo(14), full, refTime), 0.01)
	assert.InDelta(t, 0.25, Factor(daysAgo(28), full, refTime), 0.01)

	half := Recency{AgingFactor: 0.5, HalfLifeDays: 14}
	assert.InDelta(t, 0.75, Factor(daysAgo(14), half, refTime), 0.01)

	off := Recency{AgingFactor: 0, HalfLifeDays: 14}
	assert.Equal(t, 1.0, Factor(daysAgo(400), off, refTime))
	assert.Equal(t, 1.0, Factor(time.Time{}, off, refTime))
}

func TestFactor_MissingOrFutureTimestamp(t *testing.T) {
	r := Recency{AgingFactor: 1.0, HalfLifeDays: 7}
	assert.Equal(t, 1.0, Factor(time.Time{}, r, refTime), "zero time means no decay")
	assert.InDelta(t, 1.0, Factor(refTime.Add(48*time.Hour), r, refTime), 1e-9, "future clamps to age 0")
}

func TestApplyRecency_Resorts(t *testing.T) {
	cands := []types.ScoredCandidate{
		{Memory: types.Memory{ID: "A", CreatedAt: daysAgo(14)}, CombinedScore: 1.0},
		{Memory: types.Memory{ID: "B", CreatedAt: daysAgo(0)}, CombinedScore: 0.4},
		{Memory: types.Memory{ID: "C", CreatedAt: daysAgo(7)}, CombinedScore: 0.6},
	}

	out := ApplyRecency(cands, CombinedScore, Recency{AgingFactor: 1.0, HalfLifeDays: 7}, refTime)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"B", "C", "A"}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.InDelta(t, 0.4, out[0].CombinedScore, 0.001)
	assert.InDelta(t, 0.3, out[1].CombinedScore, 0.001)
	assert.InDelta(t, 0.25, out[2].CombinedScore, 0.001)
	require.NotNil(t, out[2].RecencyFactor)
	assert.InDelta(t, 0.25, *out[2].RecencyFactor, 0.001)

	assert.Equal(t, "A", cands[0].ID, "input is not reordered")
	assert.Nil(t, cands[0].RecencyFactor, "input is not mutated")
	assert.Equal(t, 1.0, cands[0].CombinedScore)
}

func TestApplyRecency_DisabledIsIdentity(t *testing.T) {
	cands := []types.ScoredCandidate{
		{Memory: types.Memory{ID: "A", CreatedAt: daysAgo(30)}, CombinedScore: 0.9},
		{Memory: types.Memory{ID: "B"}, CombinedScore: 0.1},
	}

	out := ApplyRecency(cands, CombinedScore, Recency{AgingFactor: 0, HalfLifeDays: 7}, refTime)
	assert.Equal(t, cands, out)
	for _, c := range out {
		assert.Nil(t, c.RecencyFactor)
	}

	lexical := []types.LexicalResult{{Memory: types.Memory{ID: "x"}, Rank: -3}}
	assert.Equal(t, lexical, ApplyRecencyLexical(lexical, Recency{}, refTime))
}

func TestApplyRecency_OtherField(t *testing.T) {
	cands := []types.ScoredCandidate{
		{Memory: types.Memory{ID: "old", CreatedAt: daysAgo(10)}, VectorScore: 0.9},
		{Memory: types.Memory{ID: "new", CreatedAt: daysAgo(0)}, VectorScore: 0.5},
	}
	out := ApplyRecency(cands, VectorScore, Recency{AgingFactor: 1.0, HalfLifeDays: 5}, refTime)
	assert.Equal(t, "new", out[0].ID)
	assert.InDelta(t, 0.225, out[1].VectorScore, 0.001)
}

func TestApplyRecencyLexical(t *testing.T) {
	results := []types.LexicalResult{
		{Memory: types.Memory{ID: "old", CreatedAt: daysAgo(14)}, Rank: -10},
		{Memory: types.Memory{ID: "fresh", CreatedAt: daysAgo(0)}, Rank: -6},
		{Memory: types.Memory{ID: "undated"}, Rank: -2},
	}

	out := ApplyRecencyLexical(results, Recency{AgingFactor: 1.0, HalfLifeDays: 7}, refTime)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"fresh", "old", "undated"}, []string{out[0].ID, out[1].ID, out[2].ID})

	assert.InDelta(t, -6.0, out[0].Rank, 0.001)
	assert.InDelta(t, -2.5, out[1].Rank, 0.001, "decayed absolute score keeps the native sign")
	require.NotNil(t, out[2].RecencyFactor)
	assert.Equal(t, 1.0, *out[2].RecencyFactor)

	assert.Equal(t, -10.0, results[0].Rank)
}
