package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/dshills/recall-mcp/pkg/types"
)

// VectorSearch returns the nearest memories by cosine distance.
func (s *SQLiteStore) VectorSearch(ctx context.Context, q VectorQuery) ([]types.VectorResult, error) {
	if len(q.Embedding) == 0 || q.Limit <= 0 {
		return []types.VectorResult{}, nil
	}

	n, err := s.EmbeddingCount(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []types.VectorResult{}, nil
	}

	// Use SQL-side distance when sqlite-vec is linked in
	if VectorExtensionAvailable {
		return s.vectorSearchSQL(ctx, q)
	}
	return s.vectorSearchFallback(ctx, q)
}

// vectorSearchSQL computes distances with sqlite-vec's vec_distance_cosine.
func (s *SQLiteStore) vectorSearchSQL(ctx context.Context, q VectorQuery) ([]types.VectorResult, error) {
	blob := serializeVector(q.Embedding)

	query := "SELECT " + memoryColumns + `, vec_distance_cosine(e.vector, ?) AS distance
		FROM memories m
		INNER JOIN memory_embeddings e ON e.memory_id = m.id
		WHERE e.dimensions = ?`
	args := []interface{}{blob, len(q.Embedding)}
	query, args = applyDateFilters(query, args, q.CreatedAfter, q.CreatedBefore)
	query += " ORDER BY distance ASC LIMIT ?"
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.VectorResult, 0, q.Limit)
	for rows.Next() {
		var distance float64
		m, err := s.scanMemory(rows, &distance)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vector result: %w", err)
		}
		results = append(results, types.VectorResult{Memory: *m, Distance: distance})
	}
	return results, rows.Err()
}

// vectorSearchFallback loads candidate vectors and ranks them in Go. Used by
// pure-Go builds where the sqlite-vec extension is unavailable.
func (s *SQLiteStore) vectorSearchFallback(ctx context.Context, q VectorQuery) ([]types.VectorResult, error) {
	query := "SELECT " + memoryColumns + `, e.vector
		FROM memories m
		INNER JOIN memory_embeddings e ON e.memory_id = m.id
		WHERE e.dimensions = ?`
	args := []interface{}{len(q.Embedding)}
	query, args = applyDateFilters(query, args, q.CreatedAfter, q.CreatedBefore)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.VectorResult, 0)
	for rows.Next() {
		var blob []byte
		m, err := s.scanMemory(rows, &blob)
		if err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		vector := deserializeVector(blob)
		if len(vector) != len(q.Embedding) {
			continue
		}
		results = append(results, types.VectorResult{
			Memory:   *m,
			Distance: cosineDistance(q.Embedding, vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian).
// This is also the blob format sqlite-vec reads.
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

// cosineDistance is 1 - cosine similarity, in [0, 2]. Zero vectors are
// treated as orthogonal to everything.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
