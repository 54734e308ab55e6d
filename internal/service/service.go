package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/recall-mcp/internal/indexer"
	"github.com/dshills/recall-mcp/internal/ranking"
	"github.com/dshills/recall-mcp/internal/registry"
	"github.com/dshills/recall-mcp/internal/storage"
	"github.com/dshills/recall-mcp/pkg/types"
)

// ErrNotFound is returned when no scope holds the requested memory.
var ErrNotFound = storage.ErrNotFound

// Pipeline accepts embedding jobs.
type Pipeline interface {
	Enqueue(job types.EmbeddingJob) bool
	Stats() indexer.Statistics
}

// HealthChecker probes the embedding worker without starting it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// Options configures a Service.
type Options struct {
	Pipeline      Pipeline      // nil disables embedding
	Health        HealthChecker // nil reports the worker as unhealthy
	VectorEnabled bool
	Recency       ranking.Recency
	DefaultLimit  int
	Logger        zerolog.Logger

	// RecencyExpansionFactor widens lexical fetches when recency decay can
	// reorder results (default: 3).
	RecencyExpansionFactor int
}

// Service implements memory operations on top of a registry.
type Service struct {
	registry *registry.Registry
	opts     Options
	logger   zerolog.Logger
}

// New creates a Service.
func New(reg *registry.Registry, opts Options) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = types.DefaultLimit
	}
	if opts.RecencyExpansionFactor <= 0 {
		opts.RecencyExpansionFactor = 3
	}
	return &Service{
		registry: reg,
		opts:     opts,
		logger:   opts.Logger.With().Str("component", "service").Logger(),
	}
}

// StoreRequest describes a new memory.
type StoreRequest struct {
	Content  string
	Type     string
	Tags     []string
	Metadata map[string]any
	Project  string // empty for the global scope
}

// Remember validates and stores a memory, then queues it for embedding.
func (s *Service) Remember(ctx context.Context, req StoreRequest) (*types.Memory, error) {
	if err := types.ValidateContent(req.Content); err != nil {
		return nil, err
	}

	store, err := s.registry.GetStore(projectRef(req.Project))
	if err != nil {
		return nil, err
	}

	m, err := store.Add(ctx, storage.NewMemory{
		Content:  req.Content,
		Type:     strings.TrimSpace(req.Type),
		Tags:     req.Tags,
		Metadata: req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	s.enqueue(m)
	s.logger.Debug().Str("id", m.ID).Str("scope", m.ProjectKey()).Msg("memory stored")
	return m, nil
}

// Get returns a memory by id. An empty project searches every scope.
func (s *Service) Get(ctx context.Context, project, id string) (*types.Memory, error) {
	_, m, err := s.locate(ctx, project, id)
	return m, err
}

// UpdateRequest carries optional changes. Nil fields are left alone.
type UpdateRequest struct {
	Content  *string
	Type     *string
	Tags     []string
	Metadata map[string]any
}

// Update changes a memory. A content change queues a new embedding.
func (s *Service) Update(ctx context.Context, project, id string, req UpdateRequest) (*types.Memory, error) {
	if req.Content != nil {
		if err := types.ValidateContent(*req.Content); err != nil {
			return nil, err
		}
	}

	store, before, err := s.locate(ctx, project, id)
	if err != nil {
		return nil, err
	}

	m, err := store.Update(ctx, id, storage.MemoryUpdate{
		Content:  req.Content,
		Type:     req.Type,
		Tags:     req.Tags,
		Metadata: req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	if m.Content != before.Content {
		s.enqueue(m)
	}
	return m, nil
}

// Forget deletes a memory. An empty project searches every scope.
func (s *Service) Forget(ctx context.Context, project, id string) error {
	store, _, err := s.locate(ctx, project, id)
	if err != nil {
		return err
	}
	return store.Delete(ctx, id)
}

// RecentRequest lists the newest memories.
type RecentRequest struct {
	Project string // empty lists every scope
	Types   []string
	Limit   int
}

// Recent returns memories newest first.
func (s *Service) Recent(ctx context.Context, req RecentRequest) ([]types.Memory, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}

	stores, err := s.scopeStores(ctx, req.Project)
	if err != nil {
		return nil, err
	}

	var out []types.Memory
	for _, store := range stores {
		ms, err := store.List(ctx, storage.ListOptions{MemoryTypes: req.Types, Limit: limit})
		if err != nil {
			return nil, err
		}
		out = append(out, ms...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []types.Memory{}
	}
	return out, nil
}

// TagStats returns tag frequencies for one project, or across every scope
// when project is empty.
func (s *Service) TagStats(ctx context.Context, project, memoryType string) ([]types.TagCount, error) {
	return s.registry.TagStats(ctx, projectRef(project), strings.TrimSpace(memoryType))
}

// ListProjects returns the canonical keys of every project on disk.
func (s *Service) ListProjects() ([]string, error) {
	return s.registry.ListProjects()
}

// Status reports store counts and the state of the embedding pipeline.
type Status struct {
	DataDir         string              `json:"data_dir"`
	VectorEnabled   bool                `json:"vector_enabled"`
	EmbedderHealthy bool                `json:"embedder_healthy"`
	Indexer         *indexer.Statistics `json:"indexer,omitempty"`
	Scopes          []storage.Stats     `json:"scopes"`
	TotalMemories   int                 `json:"total_memories"`
	TotalEmbeddings int                 `json:"total_embeddings"`
	CheckedAt       time.Time           `json:"checked_at"`
}

// Status gathers per-scope statistics. It never starts the worker.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	stores, err := s.registry.AllStores(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{
		DataDir:       s.registry.DataDir(),
		VectorEnabled: s.opts.VectorEnabled,
		Scopes:        make([]storage.Stats, 0, len(stores)),
		CheckedAt:     time.Now().UTC(),
	}
	for _, store := range stores {
		stats, err := store.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read stats for %s: %w", store.Path(), err)
		}
		st.Scopes = append(st.Scopes, *stats)
		st.TotalMemories += stats.Memories
		st.TotalEmbeddings += stats.Embeddings
	}

	if s.opts.Health != nil {
		st.EmbedderHealthy = s.opts.Health.HealthCheck(ctx)
	}
	if s.opts.Pipeline != nil {
		stats := s.opts.Pipeline.Stats()
		st.Indexer = &stats
	}
	return st, nil
}

func (s *Service) enqueue(m *types.Memory) {
	if s.opts.Pipeline == nil || !s.opts.VectorEnabled {
		return
	}
	if !s.opts.Pipeline.Enqueue(types.JobFor(m)) {
		s.logger.Debug().Str("id", m.ID).Msg("embedding pipeline not running; memory left for backlog scan")
	}
}

// locate finds the store holding id. With an empty project the global
// scope is tried first, then every project.
func (s *Service) locate(ctx context.Context, project, id string) (storage.Store, *types.Memory, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}

	stores, err := s.scopeStores(ctx, project)
	if err != nil {
		return nil, nil, err
	}
	for _, store := range stores {
		m, err := store.Get(ctx, id)
		if err == nil {
			return store, m, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, nil, err
		}
	}
	return nil, nil, fmt.Errorf("memory %s: %w", id, ErrNotFound)
}

func (s *Service) scopeStores(ctx context.Context, project string) ([]storage.Store, error) {
	if strings.TrimSpace(project) == "" {
		return s.registry.AllStores(ctx)
	}
	store, err := s.registry.GetStore(&project)
	if err != nil {
		return nil, err
	}
	return []storage.Store{store}, nil
}

func projectRef(project string) *string {
	if strings.TrimSpace(project) == "" {
		return nil
	}
	return &project
}
