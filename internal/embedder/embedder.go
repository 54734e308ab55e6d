package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Process failure causes. Every error returned by Client wraps one of these
// inside a *ProcessError, or a context error.
var (
	ErrWorkerNotFound    = errors.New("embedding worker not found")
	ErrStartupTimeout    = errors.New("embedding worker startup timed out")
	ErrRequestTimeout    = errors.New("embedding request timed out")
	ErrProcessExited     = errors.New("embedding worker exited")
	ErrBrokenPipe        = errors.New("embedding worker pipe broken")
	ErrMalformedResponse = errors.New("malformed embedding response")
	ErrWorkerReported    = errors.New("embedding worker reported an error")
)

// ProcessError is the error type of the embedding client.
type ProcessError struct {
	Op  string // start, embed, ping
	Err error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("embedder %s: %v", e.Op, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// IsProcessError reports whether err came from the embedding client.
func IsProcessError(err error) bool {
	var pe *ProcessError
	return errors.As(err, &pe)
}

// Embedder turns texts into vectors, one per text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Cache provides in-memory LRU caching of vectors by text hash
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates a cache holding up to maxLen vectors
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 1000
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[string, []float32](1000)
	}
	return &Cache{cache: cache}
}

// Get returns a copy of the cached vector, so callers cannot mutate it.
func (c *Cache) Get(hash string) ([]float32, bool) {
	v, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	return append([]float32(nil), v...), true
}

func (c *Cache) Set(hash string, v []float32) {
	c.cache.Add(hash, append([]float32(nil), v...))
}

func (c *Cache) Size() int { return c.cache.Len() }

func (c *Cache) Clear() { c.cache.Purge() }

// ComputeHash computes the SHA-256 hash of text, used as the cache key
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// CachedEmbedder embeds single queries through an LRU cache. Repeated
// searches for the same text skip the worker round trip.
type CachedEmbedder struct {
	inner Embedder
	cache *Cache
}

func NewCachedEmbedder(inner Embedder, size int) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: NewCache(size)}
}

// EmbedQuery returns the vector for one query text.
func (e *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := ComputeHash(text)
	if v, ok := e.cache.Get(key); ok {
		return v, nil
	}

	vectors, err := e.inner.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, &ProcessError{Op: "embed", Err: fmt.Errorf("%w: expected one vector, got %d", ErrMalformedResponse, len(vectors))}
	}

	e.cache.Set(key, vectors[0])
	return vectors[0], nil
}

// Cache exposes the underlying cache for status reporting.
func (e *CachedEmbedder) Cache() *Cache { return e.cache }
