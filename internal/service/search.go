package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/recall-mcp/internal/ranking"
	"github.com/dshills/recall-mcp/pkg/types"
)

// Mode selects a search strategy.
type Mode string

const (
	ModeHybrid  Mode = "hybrid"
	ModeLexical Mode = "lexical"
	ModeTags    Mode = "tags"
)

// ParseMode maps user input to a Mode. Empty input selects hybrid.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeHybrid:
		return ModeHybrid, nil
	case ModeLexical, "keyword", "text":
		return ModeLexical, nil
	case ModeTags, "tag":
		return ModeTags, nil
	default:
		return "", fmt.Errorf("unknown search mode %q", s)
	}
}

// SearchRequest describes a search. Query is a phrase; Terms, when set,
// must all match instead. Tags drives tag mode.
type SearchRequest struct {
	Mode          Mode
	Query         string
	Terms         []string
	Tags          []string
	Project       string // empty searches every scope
	Types         []string
	Limit         int
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// SearchResponse holds the results of one mode. Only the field matching
// Mode is populated.
type SearchResponse struct {
	Mode     Mode                    `json:"mode"`
	Count    int                     `json:"count"`
	Scored   []types.ScoredCandidate `json:"scored,omitempty"`
	Lexical  []types.LexicalResult   `json:"lexical,omitempty"`
	Memories []types.Memory          `json:"memories,omitempty"`
}

// Search dispatches on req.Mode.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeHybrid
	}

	if mode == ModeTags {
		return s.searchTags(ctx, req)
	}

	q := types.PhraseQuery(req.Query)
	if len(req.Terms) > 0 {
		q = types.TermsQuery(req.Terms...)
	}
	c, err := s.criteria(q, req)
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeHybrid:
		scored, err := s.registry.HybridSearch(ctx, c)
		if err != nil {
			return nil, err
		}
		return &SearchResponse{Mode: mode, Count: len(scored), Scored: scored}, nil
	case ModeLexical:
		return s.searchLexical(ctx, c)
	default:
		return nil, fmt.Errorf("unknown search mode %q", mode)
	}
}

func (s *Service) searchLexical(ctx context.Context, c types.SearchCriteria) (*SearchResponse, error) {
	limit := c.Limit()
	fetch := c
	if s.opts.Recency.Enabled() {
		fetch = c.WithLimit(limit * s.opts.RecencyExpansionFactor)
	}

	results, err := s.registry.SearchAll(ctx, fetch)
	if err != nil {
		return nil, err
	}
	results = ranking.ApplyRecencyLexical(results, s.opts.Recency, time.Now())
	if len(results) > limit {
		results = results[:limit]
	}
	return &SearchResponse{Mode: ModeLexical, Count: len(results), Lexical: results}, nil
}

func (s *Service) searchTags(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	tags := types.NormalizeTags(req.Tags)
	if len(tags) == 0 {
		return nil, types.ErrNoTags
	}

	c, err := s.criteria(types.TermsQuery(tags...), req)
	if err != nil {
		return nil, err
	}
	memories, err := s.registry.SearchByTags(ctx, c, tags)
	if err != nil {
		return nil, err
	}
	return &SearchResponse{Mode: ModeTags, Count: len(memories), Memories: memories}, nil
}

func (s *Service) criteria(q types.Query, req SearchRequest) (types.SearchCriteria, error) {
	limit := req.Limit
	if limit == 0 {
		limit = s.opts.DefaultLimit
	}
	return types.NewSearchCriteria(q,
		types.WithLimit(limit),
		types.InProject(strings.TrimSpace(req.Project)),
		types.OfTypes(req.Types...),
		types.CreatedBetween(req.CreatedAfter, req.CreatedBefore),
	)
}
