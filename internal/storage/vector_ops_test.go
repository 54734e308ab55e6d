package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorSearch(t *testing.T) {
	store := setupTestStore(t, nil)
	ctx := context.Background()

	near := addMemory(t, store, "near")
	mid := addMemory(t, store, "mid")
	far := addMemory(t, store, "far")
	addMemory(t, store, "no vector")

	require.NoError(t, store.StoreEmbedding(ctx, near.ID, []float32{1, 0, 0}))
	require.NoError(t, store.StoreEmbedding(ctx, mid.ID, []float32{1, 1, 0}))
	require.NoError(t, store.StoreEmbedding(ctx, far.ID, []float32{0, 0, 1}))

	results, err := store.VectorSearch(ctx, VectorQuery{Embedding: []float32{1, 0, 0}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, near.ID, results[0].ID)
	assert.Equal(t, mid.ID, results[1].ID)
	assert.Equal(t, far.ID, results[2].ID)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
	assert.InDelta(t, 1.0, results[2].Distance, 1e-6)

	limited, err := store.VectorSearch(ctx, VectorQuery{Embedding: []float32{1, 0, 0}, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	future := time.Now().Add(time.Hour)
	none, err := store.VectorSearch(ctx, VectorQuery{Embedding: []float32{1, 0, 0}, Limit: 10, CreatedAfter: &future})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestVectorSearch_NoIndex(t *testing.T) {
	store := setupTestStore(t, nil)
	addMemory(t, store, "text only")

	results, err := store.VectorSearch(context.Background(), VectorQuery{Embedding: []float32{1, 0}, Limit: 5})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestVectorSearch_SkipsOtherDimensions(t *testing.T) {
	store := setupTestStore(t, nil)
	ctx := context.Background()
	m := addMemory(t, store, "three dims")
	require.NoError(t, store.StoreEmbedding(ctx, m.ID, []float32{1, 0, 0}))

	results, err := store.VectorSearch(ctx, VectorQuery{Embedding: []float32{1, 0}, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorCodec(t *testing.T) {
	v := []float32{0.25, -1.5, 3.75, 0}
	blob := serializeVector(v)
	assert.Len(t, blob, 16)
	assert.Equal(t, v, deserializeVector(blob))
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0.0, cosineDistance([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 1.0, cosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2.0, cosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 1.0, cosineDistance([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 1.0, cosineDistance([]float32{1}, []float32{1, 0}))
}
