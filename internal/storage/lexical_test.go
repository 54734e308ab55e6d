package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/recall-mcp/pkg/types"
)

func TestSearch_PhraseAndTerms(t *testing.T) {
	store := setupTestStore(t, nil)
	ctx := context.Background()
	addMemory(t, store, "the retry policy drops failed batches")
	addMemory(t, store, "policy review: retry later")
	addMemory(t, store, "unrelated content about caching")

	phrase, err := store.Search(ctx, LexicalQuery{Query: types.PhraseQuery("retry policy"), Limit: 10})
	require.NoError(t, err)
	require.Len(t, phrase, 1)
	assert.Contains(t, phrase[0].Content, "retry policy")
	assert.Less(t, phrase[0].Rank, 0.0, "bm25 ranks are negative")

	terms, err := store.Search(ctx, LexicalQuery{Query: types.TermsQuery("retry", "policy"), Limit: 10})
	require.NoError(t, err)
	assert.Len(t, terms, 2)
	for i := 1; i < len(terms); i++ {
		assert.LessOrEqual(t, terms[i-1].Rank, terms[i].Rank, "results ordered by native rank")
	}
}

func TestSearch_SyntaxCharactersAreLiteral(t *testing.T) {
	store := setupTestStore(t, nil)
	ctx := context.Background()
	addMemory(t, store, `use "quotes" AND (parens) NOT stars*`)

	for _, q := range []string{`"quotes"`, "AND", "(parens)", "stars*", "NOT"} {
		_, err := store.Search(ctx, LexicalQuery{Query: types.PhraseQuery(q), Limit: 5})
		assert.NoError(t, err, q)
	}
}

func TestSearch_Filters(t *testing.T) {
	store := setupTestStore(t, nil)
	ctx := context.Background()
	_, err := store.Add(ctx, NewMemory{Content: "sqlite wal mode", Type: "decision"})
	require.NoError(t, err)
	_, err = store.Add(ctx, NewMemory{Content: "sqlite busy timeout", Type: "bug"})
	require.NoError(t, err)

	results, err := store.Search(ctx, LexicalQuery{
		Query:       types.PhraseQuery("sqlite"),
		MemoryTypes: []string{"bug"},
		Limit:       10,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bug", results[0].Type)

	future := time.Now().Add(time.Hour)
	results, err = store.Search(ctx, LexicalQuery{
		Query:        types.PhraseQuery("sqlite"),
		Limit:        10,
		CreatedAfter: &future,
	})
	require.NoError(t, err)
	assert.Empty(t, results)

	past := time.Now().Add(-time.Hour)
	results, err = store.Search(ctx, LexicalQuery{
		Query:        types.PhraseQuery("sqlite"),
		Limit:        10,
		CreatedAfter: &past,
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	_, err = store.Search(ctx, LexicalQuery{Query: types.PhraseQuery("  "), Limit: 10})
	assert.ErrorIs(t, err, ErrEmptyMatch)
}

func TestSearchByTags(t *testing.T) {
	store := setupTestStore(t, nil)
	ctx := context.Background()
	older := addMemory(t, store, "one", "go", "sqlite")
	addMemory(t, store, "two", "go")
	newer := addMemory(t, store, "three", "SQLite", "GO", "fts")

	results, err := store.SearchByTags(ctx, TagQuery{Tags: []string{"Go", "sqlite"}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, newer.ID, results[0].ID, "newest first")
	assert.Equal(t, older.ID, results[1].ID)

	_, err = store.SearchByTags(ctx, TagQuery{Tags: []string{" "}, Limit: 10})
	assert.ErrorIs(t, err, types.ErrNoTags)
}

func TestTagStats(t *testing.T) {
	store := setupTestStore(t, nil)
	ctx := context.Background()
	addMemory(t, store, "one", "go", "sqlite")
	addMemory(t, store, "two", "go")
	_, err := store.Add(ctx, NewMemory{Content: "three", Type: "bug", Tags: []string{"go"}})
	require.NoError(t, err)

	all, err := store.TagStats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"go": 3, "sqlite": 1}, all)

	bugs, err := store.TagStats(ctx, "bug")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"go": 1}, bugs)
}

func TestBuildMatchExpression(t *testing.T) {
	assert.Equal(t, `"retry policy"`, buildMatchExpression(types.PhraseQuery("retry policy")))
	assert.Equal(t, `"a" AND "b"`, buildMatchExpression(types.TermsQuery("a", "b")))
	assert.Equal(t, `"say ""hi"""`, buildMatchExpression(types.PhraseQuery(`say "hi"`)))
	assert.Equal(t, "", buildMatchExpression(types.PhraseQuery("")))
}
