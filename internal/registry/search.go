package registry

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/recall-mcp/internal/ranking"
	"github.com/dshills/recall-mcp/internal/storage"
	"github.com/dshills/recall-mcp/pkg/types"
)

// SearchAll runs a lexical search in the criteria's project, or in every
// scope when it is unscoped. Results are ordered by rank, best first.
func (r *Registry) SearchAll(ctx context.Context, c types.SearchCriteria) ([]types.LexicalResult, error) {
	stores, err := r.storesFor(ctx, c)
	if err != nil {
		return nil, err
	}

	q := storage.LexicalQuery{
		Query:         c.Query(),
		MemoryTypes:   c.MemoryTypes(),
		Limit:         c.Limit(),
		CreatedAfter:  c.CreatedAfter(),
		CreatedBefore: c.CreatedBefore(),
	}

	perStore := make([][]types.LexicalResult, len(stores))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range stores {
		g.Go(func() error {
			res, err := s.Search(gctx, q)
			if err != nil {
				return err
			}
			perStore[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results []types.LexicalResult
	for _, res := range perStore {
		results = append(results, res...)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Rank < results[j].Rank
	})
	return truncate(results, c.Limit()), nil
}

// SearchByTags returns memories carrying every tag, newest first. The
// criteria's query is ignored; its scope, filters and limit apply.
func (r *Registry) SearchByTags(ctx context.Context, c types.SearchCriteria, tags []string) ([]types.Memory, error) {
	if len(types.NormalizeTags(tags)) == 0 {
		return nil, types.ErrNoTags
	}

	stores, err := r.storesFor(ctx, c)
	if err != nil {
		return nil, err
	}

	q := storage.TagQuery{
		Tags:          tags,
		MemoryTypes:   c.MemoryTypes(),
		Limit:         c.Limit(),
		CreatedAfter:  c.CreatedAfter(),
		CreatedBefore: c.CreatedBefore(),
	}

	perStore := make([][]types.Memory, len(stores))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range stores {
		g.Go(func() error {
			res, err := s.SearchByTags(gctx, q)
			if err != nil {
				return err
			}
			perStore[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results []types.Memory
	for _, res := range perStore {
		results = append(results, res...)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return truncate(results, c.Limit()), nil
}

// HybridSearch fuses lexical and vector results. Without a vector backend,
// or when embedding the query fails, it returns the lexical results of
// SearchAll as candidates. Recency decay is applied last when configured.
func (r *Registry) HybridSearch(ctx context.Context, c types.SearchCriteria) ([]types.ScoredCandidate, error) {
	limit := c.Limit()
	factor := r.opts.ExpansionFactor
	if r.opts.Recency.Enabled() {
		factor = r.opts.RecencyExpansionFactor
	}
	expanded := c.WithLimit(limit * factor)

	if !r.vectorsAvailable() {
		return r.lexicalOnly(ctx, c, expanded)
	}

	embedding, err := r.opts.Embedder.EmbedQuery(ctx, c.Query().Text())
	if err != nil {
		r.logger.Warn().Err(err).Msg("query embedding failed; using lexical search only")
		return r.lexicalOnly(ctx, c, expanded)
	}

	var (
		lexical []types.LexicalResult
		vector  []types.VectorResult
	)
	var g errgroup.Group
	g.Go(func() error {
		res, err := r.SearchAll(ctx, expanded)
		lexical = res
		return err
	})
	g.Go(func() error {
		res, err := r.vectorSearchAll(ctx, expanded, embedding)
		if err != nil {
			r.logger.Warn().Err(err).Msg("vector search failed; using lexical results only")
			return nil
		}
		vector = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := ranking.Merge(lexical, vector, expanded.Limit())
	return r.finish(merged, limit), nil
}

func (r *Registry) vectorsAvailable() bool {
	return r.opts.Embedder != nil && r.opts.VectorAvailable != nil && r.opts.VectorAvailable()
}

// lexicalOnly is SearchAll with recency applied the lexical way: the
// candidates carry the decayed absolute rank, not a normalized score.
func (r *Registry) lexicalOnly(ctx context.Context, c, expanded types.SearchCriteria) ([]types.ScoredCandidate, error) {
	fetch := c
	if r.opts.Recency.Enabled() {
		fetch = expanded
	}
	lexical, err := r.SearchAll(ctx, fetch)
	if err != nil {
		return nil, err
	}
	lexical = ranking.ApplyRecencyLexical(lexical, r.opts.Recency, time.Now())
	return truncate(ranking.FromLexical(lexical), c.Limit()), nil
}

func (r *Registry) finish(cands []types.ScoredCandidate, limit int) []types.ScoredCandidate {
	cands = ranking.ApplyRecency(cands, ranking.CombinedScore, r.opts.Recency, time.Now())
	return truncate(cands, limit)
}

// vectorSearchAll fans a nearest-neighbour query out across the criteria's
// stores. Results beyond MaxDistance or of an unwanted type are dropped.
func (r *Registry) vectorSearchAll(ctx context.Context, c types.SearchCriteria, embedding []float32) ([]types.VectorResult, error) {
	stores, err := r.storesFor(ctx, c)
	if err != nil {
		return nil, err
	}

	q := storage.VectorQuery{
		Embedding:     embedding,
		Limit:         c.Limit(),
		CreatedAfter:  c.CreatedAfter(),
		CreatedBefore: c.CreatedBefore(),
	}

	perStore := make([][]types.VectorResult, len(stores))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range stores {
		g.Go(func() error {
			res, err := s.VectorSearch(gctx, q)
			if err != nil {
				return err
			}
			perStore[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results []types.VectorResult
	for _, res := range perStore {
		for _, v := range res {
			if r.opts.MaxDistance > 0 && v.Distance > r.opts.MaxDistance {
				continue
			}
			if !c.MatchesType(v.Type) {
				continue
			}
			results = append(results, v)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	return truncate(results, c.Limit()), nil
}

func truncate[T any](s []T, limit int) []T {
	if s == nil {
		return []T{}
	}
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
