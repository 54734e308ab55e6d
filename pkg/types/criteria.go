package types

import (
	"strings"
	"time"
)

// Query is either a phrase or a list of terms that must all match.
type Query struct {
	Phrase string
	Terms  []string
}

// PhraseQuery builds a phrase query.
func PhraseQuery(s string) Query { return Query{Phrase: s} }

// TermsQuery builds an AND query over the given terms.
func TermsQuery(terms ...string) Query {
	cp := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			cp = append(cp, t)
		}
	}
	return Query{Terms: cp}
}

// IsTerms reports whether the query uses AND-of-terms semantics.
func (q Query) IsTerms() bool { return len(q.Terms) > 0 }

// IsEmpty reports whether the query has nothing to match.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Phrase) == "" && len(q.Terms) == 0
}

// Text is the query as plain text, used for embedding.
func (q Query) Text() string {
	if q.IsTerms() {
		return strings.Join(q.Terms, " ")
	}
	return q.Phrase
}

// SearchCriteria is an immutable search request. Use NewSearchCriteria and
// the With* methods, which return modified copies.
type SearchCriteria struct {
	query         Query
	project       *string
	memoryTypes   []string
	limit         int
	createdAfter  *time.Time
	createdBefore *time.Time
}

// DefaultLimit applies when no limit option is given.
const DefaultLimit = 10

// CriteriaOption configures SearchCriteria at construction.
type CriteriaOption func(*SearchCriteria)

// WithLimit sets the result limit.
func WithLimit(n int) CriteriaOption {
	return func(c *SearchCriteria) { c.limit = n }
}

// InProject scopes the criteria to one project.
func InProject(project string) CriteriaOption {
	return func(c *SearchCriteria) {
		if project != "" {
			p := project
			c.project = &p
		}
	}
}

// OfTypes filters by memory type. Several types are OR'ed.
func OfTypes(types ...string) CriteriaOption {
	return func(c *SearchCriteria) {
		for _, t := range types {
			if t = strings.TrimSpace(t); t != "" {
				c.memoryTypes = append(c.memoryTypes, t)
			}
		}
	}
}

// CreatedBetween bounds created_at. Either side may be nil.
func CreatedBetween(after, before *time.Time) CriteriaOption {
	return func(c *SearchCriteria) {
		c.createdAfter = copyTime(after)
		c.createdBefore = copyTime(before)
	}
}

// NewSearchCriteria validates and builds a criteria value.
func NewSearchCriteria(q Query, opts ...CriteriaOption) (SearchCriteria, error) {
	c := SearchCriteria{query: q, limit: DefaultLimit}
	for _, opt := range opts {
		opt(&c)
	}
	if q.IsEmpty() {
		return SearchCriteria{}, ErrEmptyQuery
	}
	if c.limit <= 0 {
		return SearchCriteria{}, ErrInvalidLimit
	}
	if c.createdAfter != nil && c.createdBefore != nil && c.createdAfter.After(*c.createdBefore) {
		return SearchCriteria{}, ErrInvalidDateSpan
	}
	return c, nil
}

func (c SearchCriteria) Query() Query { return c.query }

// Project returns the requested project name, or nil when unscoped.
func (c SearchCriteria) Project() *string { return c.project }

// Scoped reports whether the criteria targets a single project.
func (c SearchCriteria) Scoped() bool { return c.project != nil }

func (c SearchCriteria) MemoryTypes() []string {
	return append([]string(nil), c.memoryTypes...)
}

func (c SearchCriteria) Limit() int { return c.limit }

func (c SearchCriteria) CreatedAfter() *time.Time { return copyTime(c.createdAfter) }

func (c SearchCriteria) CreatedBefore() *time.Time { return copyTime(c.createdBefore) }

// MatchesType reports whether a memory type passes the type filter.
func (c SearchCriteria) MatchesType(memoryType string) bool {
	if len(c.memoryTypes) == 0 {
		return true
	}
	for _, t := range c.memoryTypes {
		if t == memoryType {
			return true
		}
	}
	return false
}

// WithProject returns a copy scoped to project. A nil project unscopes it.
func (c SearchCriteria) WithProject(project *string) SearchCriteria {
	cp := c.clone()
	if project == nil {
		cp.project = nil
	} else {
		p := *project
		cp.project = &p
	}
	return cp
}

// WithLimit returns a copy with a different limit. Non-positive values are
// ignored.
func (c SearchCriteria) WithLimit(n int) SearchCriteria {
	cp := c.clone()
	if n > 0 {
		cp.limit = n
	}
	return cp
}

func (c SearchCriteria) clone() SearchCriteria {
	cp := c
	cp.query.Terms = append([]string(nil), c.query.Terms...)
	cp.memoryTypes = append([]string(nil), c.memoryTypes...)
	cp.createdAfter = copyTime(c.createdAfter)
	cp.createdBefore = copyTime(c.createdBefore)
	if c.project != nil {
		p := *c.project
		cp.project = &p
	}
	return cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
