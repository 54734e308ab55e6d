package storage

import (
	"context"
	"time"

	"github.com/dshills/recall-mcp/pkg/types"
)

// Store is one scope's persistent memory collection: a named project or the
// global scope. Implementations must be safe for concurrent use.
type Store interface {
	// Project returns the canonical project key, or nil for the global scope.
	Project() *string
	Path() string

	Add(ctx context.Context, m NewMemory) (*types.Memory, error)
	Get(ctx context.Context, id string) (*types.Memory, error)
	Update(ctx context.Context, id string, u MemoryUpdate) (*types.Memory, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListOptions) ([]types.Memory, error)

	// Search is a lexical match; Rank is more negative for better matches.
	Search(ctx context.Context, q LexicalQuery) ([]types.LexicalResult, error)
	// SearchByTags requires every tag to be present.
	SearchByTags(ctx context.Context, q TagQuery) ([]types.Memory, error)
	// VectorSearch returns an empty slice when the store has no vectors.
	VectorSearch(ctx context.Context, q VectorQuery) ([]types.VectorResult, error)

	StoreEmbedding(ctx context.Context, memoryID string, vector []float32) error
	EmbeddingCount(ctx context.Context) (int, error)
	// MemoriesWithoutEmbeddings lists memories lacking a vector. limit <= 0
	// returns all of them.
	MemoriesWithoutEmbeddings(ctx context.Context, limit int) ([]types.Memory, error)
	TagStats(ctx context.Context, memoryType string) (map[string]int, error)
	Stats(ctx context.Context) (*Stats, error)

	Close() error
}

// NewMemory holds the fields of a memory being written.
type NewMemory struct {
	Content  string
	Type     string
	Tags     []string
	Metadata map[string]any
}

// MemoryUpdate carries optional field changes. Nil fields are left alone.
type MemoryUpdate struct {
	Content  *string
	Type     *string
	Tags     []string // nil leaves tags unchanged; empty clears them
	Metadata map[string]any
}

// ListOptions selects recent memories, newest first.
type ListOptions struct {
	MemoryTypes []string
	Limit       int
	Offset      int
}

// LexicalQuery is a full-text search request against one store.
type LexicalQuery struct {
	Query         types.Query
	MemoryTypes   []string
	Limit         int
	Offset        int
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// TagQuery is a tag search request against one store.
type TagQuery struct {
	Tags          []string
	MemoryTypes   []string
	Limit         int
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// VectorQuery is a nearest-neighbour request against one store.
type VectorQuery struct {
	Embedding     []float32
	Limit         int
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Stats summarizes one store.
type Stats struct {
	Project    *string `json:"project"`
	Memories   int     `json:"memories"`
	Embeddings int     `json:"embeddings"`
	Tags       int     `json:"distinct_tags"`
}
