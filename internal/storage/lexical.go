package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/recall-mcp/pkg/types"
)

// ErrEmptyMatch is returned when a query has no searchable text.
var ErrEmptyMatch = errors.New("empty search query")

// Search runs a BM25 full-text search over memory content.
func (s *SQLiteStore) Search(ctx context.Context, q LexicalQuery) ([]types.LexicalResult, error) {
	match := buildMatchExpression(q.Query)
	if match == "" {
		return nil, ErrEmptyMatch
	}

	query := "SELECT " + memoryColumns + `, bm25(memories_fts) AS score
		FROM memories_fts
		INNER JOIN memories m ON m.seq = memories_fts.rowid
		WHERE memories_fts MATCH ?`
	args := []interface{}{match}
	query, args = applyTypeFilter(query, args, q.MemoryTypes)
	query, args = applyDateFilters(query, args, q.CreatedAfter, q.CreatedBefore)
	query += " ORDER BY score"
	query, args = applyPaging(query, args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.LexicalResult, 0)
	for rows.Next() {
		var rank float64
		m, err := s.scanMemory(rows, &rank)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, types.LexicalResult{Memory: *m, Rank: rank})
	}
	return results, rows.Err()
}

// SearchByTags returns memories carrying every requested tag, newest first.
func (s *SQLiteStore) SearchByTags(ctx context.Context, q TagQuery) ([]types.Memory, error) {
	tags := types.NormalizeTags(q.Tags)
	if len(tags) == 0 {
		return nil, types.ErrNoTags
	}

	query := "SELECT " + memoryColumns + ` FROM memories m
		WHERE m.id IN (
			SELECT memory_id FROM memory_tags
			WHERE tag IN (` + placeholders(len(tags)) + `)
			GROUP BY memory_id
			HAVING COUNT(DISTINCT tag) = ?
		)`
	args := make([]interface{}, 0, len(tags)+4)
	for _, t := range tags {
		args = append(args, t)
	}
	args = append(args, len(tags))
	query, args = applyTypeFilter(query, args, q.MemoryTypes)
	query, args = applyDateFilters(query, args, q.CreatedAfter, q.CreatedBefore)
	query += " ORDER BY m.created_at DESC, m.seq DESC"
	query, args = applyPaging(query, args, q.Limit, 0)

	return s.queryMemories(ctx, query, args...)
}

// TagStats counts tag usage, optionally for one memory type.
func (s *SQLiteStore) TagStats(ctx context.Context, memoryType string) (map[string]int, error) {
	query := `SELECT t.tag, COUNT(*) FROM memory_tags t
		INNER JOIN memories m ON m.id = t.memory_id
		WHERE 1=1`
	var args []interface{}
	if memoryType != "" {
		query += " AND m.memory_type = ?"
		args = append(args, memoryType)
	}
	query += " GROUP BY t.tag"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read tag stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make(map[string]int)
	for rows.Next() {
		var tag string
		var n int
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, err
		}
		stats[tag] = n
	}
	return stats, rows.Err()
}

// buildMatchExpression turns a query into an FTS5 MATCH expression. Every
// user string is emitted as a quoted FTS5 string, so operators and syntax
// characters inside it are matched literally. A phrase stays one quoted
// phrase; terms are joined with AND.
func buildMatchExpression(q types.Query) string {
	if q.IsTerms() {
		parts := make([]string, 0, len(q.Terms))
		for _, t := range q.Terms {
			if quoted := quoteFTS(t); quoted != "" {
				parts = append(parts, quoted)
			}
		}
		return strings.Join(parts, " AND ")
	}
	return quoteFTS(q.Phrase)
}

func quoteFTS(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
