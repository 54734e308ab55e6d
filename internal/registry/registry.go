package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dshills/recall-mcp/internal/ranking"
	"github.com/dshills/recall-mcp/internal/storage"
	"github.com/dshills/recall-mcp/pkg/types"
)

// ErrClosed is returned by GetStore after Close.
var ErrClosed = errors.New("registry closed")

const (
	globalFile  = "global.db"
	projectsDir = "projects"
	storeExt    = ".db"
)

// Opener opens the store file at path for the given canonical project key
// (nil for global).
type Opener func(path string, project *string) (storage.Store, error)

// QueryEmbedder embeds a single search query.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Options configures a Registry. Zero values select the defaults.
type Options struct {
	Opener          Opener
	VectorAvailable func() bool // nil means vectors are unavailable
	Embedder        QueryEmbedder

	MaxDistance            float64 // vector results farther than this are dropped; 0 keeps all
	Recency                ranking.Recency
	ExpansionFactor        int // candidate multiplier for hybrid search (default: 2)
	RecencyExpansionFactor int // multiplier when recency is active (default: 3)

	Logger zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.Opener == nil {
		o.Opener = func(path string, project *string) (storage.Store, error) {
			return storage.Open(path, project)
		}
	}
	if o.ExpansionFactor <= 0 {
		o.ExpansionFactor = 2
	}
	if o.RecencyExpansionFactor <= 0 {
		o.RecencyExpansionFactor = 3
	}
}

// Registry maps canonical scope keys to open stores.
type Registry struct {
	dataDir string
	opts    Options
	logger  zerolog.Logger

	mu     sync.Mutex
	stores map[string]storage.Store
	closed bool
}

// New creates a registry rooted at dataDir. No store is opened yet.
func New(dataDir string, opts Options) *Registry {
	opts.setDefaults()
	return &Registry{
		dataDir: dataDir,
		opts:    opts,
		logger:  opts.Logger.With().Str("component", "registry").Logger(),
		stores:  make(map[string]storage.Store),
	}
}

// DataDir returns the root directory holding the store files.
func (r *Registry) DataDir() string { return r.dataDir }

// GetStore returns the store for project, opening it on first use. A nil
// or empty project selects the global scope. Names that fold to the same
// key share one instance.
func (r *Registry) GetStore(project *string) (storage.Store, error) {
	key := types.ScopeKey(project)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if s, ok := r.stores[key]; ok {
		return s, nil
	}

	path := r.pathFor(key)
	s, err := r.opts.Opener(path, types.ProjectRef(key))
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", key, err)
	}
	r.stores[key] = s
	r.logger.Debug().Str("key", key).Str("path", path).Msg("store opened")
	return s, nil
}

func (r *Registry) pathFor(key string) string {
	if key == types.GlobalKey {
		return filepath.Join(r.dataDir, globalFile)
	}
	return filepath.Join(r.dataDir, projectsDir, key+storeExt)
}

// ListProjects returns the keys of every project store on disk, sorted.
func (r *Registry) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(r.dataDir, projectsDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != storeExt {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), storeExt))
	}
	sort.Strings(keys)
	return keys, nil
}

// AllStores opens and returns the global store followed by every project
// store on disk.
func (r *Registry) AllStores(ctx context.Context) ([]storage.Store, error) {
	keys, err := r.ListProjects()
	if err != nil {
		return nil, err
	}

	global, err := r.GetStore(nil)
	if err != nil {
		return nil, err
	}
	stores := []storage.Store{global}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := r.GetStore(&key)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	return stores, nil
}

// storesFor returns the single store for a scoped criteria, or all stores.
func (r *Registry) storesFor(ctx context.Context, c types.SearchCriteria) ([]storage.Store, error) {
	if c.Scoped() {
		s, err := r.GetStore(c.Project())
		if err != nil {
			return nil, err
		}
		return []storage.Store{s}, nil
	}
	return r.AllStores(ctx)
}

// TagStats counts tags in one scope, or sums them across every scope when
// project is nil. The result is sorted by descending count, then by tag.
func (r *Registry) TagStats(ctx context.Context, project *string, memoryType string) ([]types.TagCount, error) {
	var stores []storage.Store
	if project != nil {
		s, err := r.GetStore(project)
		if err != nil {
			return nil, err
		}
		stores = []storage.Store{s}
	} else {
		all, err := r.AllStores(ctx)
		if err != nil {
			return nil, err
		}
		stores = all
	}

	totals := make(map[string]int)
	for _, s := range stores {
		counts, err := s.TagStats(ctx, memoryType)
		if err != nil {
			return nil, fmt.Errorf("failed to read tag stats from %s: %w", s.Path(), err)
		}
		for tag, n := range counts {
			totals[tag] += n
		}
	}

	out := make([]types.TagCount, 0, len(totals))
	for tag, n := range totals {
		out = append(out, types.TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out, nil
}

// Close closes every open store. Later GetStore calls fail with ErrClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for key, s := range r.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", key, err))
		}
	}
	r.stores = make(map[string]storage.Store)
	return errors.Join(errs...)
}
