package types

// LexicalResult is a full-text match. Rank follows the storage engine's
// convention: more negative is better.
type LexicalResult struct {
	Memory
	Rank          float64  `json:"rank"`
	RecencyFactor *float64 `json:"recency_factor,omitempty"`
}

// VectorResult is a nearest-neighbour match. Smaller Distance is closer.
type VectorResult struct {
	Memory
	Distance float64 `json:"distance"`
}

// ScoredCandidate is a transient ranking record. It is never persisted.
type ScoredCandidate struct {
	Memory
	LexicalScore  float64  `json:"lexical_score"`
	VectorScore   float64  `json:"vector_score"`
	CombinedScore float64  `json:"combined_score"`
	RecencyFactor *float64 `json:"recency_factor,omitempty"`
}

// TagCount is one row of tag frequency statistics.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}
