package ranking

import (
	"math"
	"sort"
	"time"

	"github.com/dshills/recall-mcp/pkg/types"
)

// Recency configures time decay. AgingFactor 0 disables it; 1 applies
// pure exponential decay.
type Recency struct {
	AgingFactor  float64
	HalfLifeDays float64
}

// Enabled reports whether decay changes anything.
func (r Recency) Enabled() bool { return r.AgingFactor != 0 }

// ScoreField selects which candidate score ApplyRecency decays.
type ScoreField int

const (
	CombinedScore ScoreField = iota
	LexicalScore
	VectorScore
)

func (f ScoreField) get(c *types.ScoredCandidate) float64 {
	switch f {
	case LexicalScore:
		return c.LexicalScore
	case VectorScore:
		return c.VectorScore
	default:
		return c.CombinedScore
	}
}

func (f ScoreField) set(c *types.ScoredCandidate, v float64) {
	switch f {
	case LexicalScore:
		c.LexicalScore = v
	case VectorScore:
		c.VectorScore = v
	default:
		c.CombinedScore = v
	}
}

const secondsPerDay = 86400

// Factor returns the decay multiplier for a memory created at createdAt.
// A zero createdAt (missing or unparseable) yields 1.0, as do timestamps in
// the future.
func Factor(createdAt time.Time, r Recency, ref time.Time) float64 {
	if r.AgingFactor == 0 || createdAt.IsZero() || r.HalfLifeDays <= 0 {
		return 1
	}
	ageDays := math.Max(0, ref.Sub(createdAt).Seconds()/secondsPerDay)
	decay := math.Exp(-math.Ln2 * ageDays / r.HalfLifeDays)
	return (1 - r.AgingFactor) + r.AgingFactor*decay
}

// ApplyRecency decays field on each candidate, records the factor and
// re-sorts descending. With decay disabled the input slice is returned
// untouched.
func ApplyRecency(cands []types.ScoredCandidate, field ScoreField, r Recency, ref time.Time) []types.ScoredCandidate {
	if !r.Enabled() {
		return cands
	}

	out := make([]types.ScoredCandidate, len(cands))
	copy(out, cands)
	for i := range out {
		f := Factor(out[i].CreatedAt, r, ref)
		field.set(&out[i], field.get(&out[i])*f)
		out[i].RecencyFactor = &f
	}

	sort.SliceStable(out, func(i, j int) bool {
		return field.get(&out[i]) > field.get(&out[j])
	})
	return out
}

// ApplyRecencyLexical decays lexical-only results. Ranks are normalized to
// 0..1 to order the decayed results; the output keeps the native sign, so
// Rank becomes rank*factor and |Rank| is the decayed absolute score.
func ApplyRecencyLexical(results []types.LexicalResult, r Recency, ref time.Time) []types.LexicalResult {
	if !r.Enabled() {
		return results
	}

	lexMax := maxAbsRank(results)
	type keyed struct {
		res types.LexicalResult
		key float64
	}
	ks := make([]keyed, len(results))
	for i, res := range results {
		f := Factor(res.CreatedAt, r, ref)
		res.RecencyFactor = &f
		ks[i] = keyed{key: math.Abs(res.Rank) / lexMax * f}
		res.Rank *= f
		ks[i].res = res
	}

	sort.SliceStable(ks, func(i, j int) bool { return ks[i].key > ks[j].key })

	out := make([]types.LexicalResult, len(ks))
	for i, k := range ks {
		out[i] = k.res
	}
	return out
}
