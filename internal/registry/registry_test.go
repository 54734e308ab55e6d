package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/recall-mcp/internal/storage"
	"github.com/dshills/recall-mcp/pkg/types"
)

func newTestRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()
	opts.Logger = zerolog.Nop()
	r := New(t.TempDir(), opts)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func ptr(s string) *string { return &s }

func remember(t *testing.T, r *Registry, project *string, content string, tags ...string) *types.Memory {
	t.Helper()
	s, err := r.GetStore(project)
	require.NoError(t, err)
	m, err := s.Add(context.Background(), storage.NewMemory{Content: content, Tags: tags})
	require.NoError(t, err)
	return m
}

func criteria(t *testing.T, q types.Query, opts ...types.CriteriaOption) types.SearchCriteria {
	t.Helper()
	c, err := types.NewSearchCriteria(q, opts...)
	require.NoError(t, err)
	return c
}

func TestGetStore_FoldsEquivalentKeys(t *testing.T) {
	r := newTestRegistry(t, Options{})

	a, err := r.GetStore(ptr("My-Project"))
	require.NoError(t, err)
	b, err := r.GetStore(ptr("my_project"))
	require.NoError(t, err)
	c, err := r.GetStore(ptr("MY PROJECT"))
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Same(t, a, c)
	require.NotNil(t, a.Project())
	assert.Equal(t, "my_project", *a.Project())
	assert.Equal(t, filepath.Join(r.DataDir(), "projects", "my_project.db"), a.Path())
}

func TestGetStore_Global(t *testing.T) {
	r := newTestRegistry(t, Options{})

	g1, err := r.GetStore(nil)
	require.NoError(t, err)
	g2, err := r.GetStore(ptr(""))
	require.NoError(t, err)

	assert.Same(t, g1, g2)
	assert.Nil(t, g1.Project())
	assert.Equal(t, filepath.Join(r.DataDir(), "global.db"), g1.Path())
}

func TestGetStore_OpenerFailurePropagates(t *testing.T) {
	boom := errors.New("disk full")
	r := newTestRegistry(t, Options{
		Opener: func(string, *string) (storage.Store, error) { return nil, boom },
	})

	_, err := r.GetStore(ptr("alpha"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	// Failures are not cached.
	_, err = r.GetStore(ptr("alpha"))
	assert.ErrorIs(t, err, boom)
}

func TestGetStore_AfterClose(t *testing.T) {
	r := newTestRegistry(t, Options{})
	_, err := r.GetStore(nil)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.GetStore(nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestListProjects(t *testing.T) {
	r := newTestRegistry(t, Options{})

	keys, err := r.ListProjects()
	require.NoError(t, err)
	assert.Empty(t, keys)

	for _, p := range []string{"Zeta", "alpha", "Mid Project"} {
		_, err := r.GetStore(ptr(p))
		require.NoError(t, err)
	}
	_, err = r.GetStore(nil)
	require.NoError(t, err)

	keys, err = r.ListProjects()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid_project", "zeta"}, keys)
}

func TestAllStores_IncludesProjectsOnDisk(t *testing.T) {
	dir := t.TempDir()
	first := New(dir, Options{Logger: zerolog.Nop()})
	_, err := first.GetStore(ptr("alpha"))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := New(dir, Options{Logger: zerolog.Nop()})
	defer second.Close()

	stores, err := second.AllStores(context.Background())
	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.Nil(t, stores[0].Project())
	assert.Equal(t, "alpha", *stores[1].Project())
}

func TestSearchAll_FanOutUnion(t *testing.T) {
	r := newTestRegistry(t, Options{})
	remember(t, r, nil, "deploy checklist for the global scope")
	remember(t, r, ptr("alpha"), "deploy alpha with blue green")
	remember(t, r, ptr("beta"), "deploy beta on fridays never")
	remember(t, r, ptr("beta"), "unrelated lunch order")

	results, err := r.SearchAll(context.Background(), criteria(t, types.PhraseQuery("deploy")))
	require.NoError(t, err)
	require.Len(t, results, 3)

	scopes := map[string]bool{}
	for i, res := range results {
		scopes[res.ProjectKey()] = true
		if i > 0 {
			assert.LessOrEqual(t, results[i-1].Rank, res.Rank)
		}
	}
	assert.Equal(t, map[string]bool{types.GlobalKey: true, "alpha": true, "beta": true}, scopes)
}

func TestSearchAll_Scoped(t *testing.T) {
	r := newTestRegistry(t, Options{})
	remember(t, r, nil, "deploy globally")
	remember(t, r, ptr("alpha"), "deploy alpha")

	results, err := r.SearchAll(context.Background(),
		criteria(t, types.PhraseQuery("deploy"), types.InProject("Alpha")))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alpha", *results[0].Project)
}

func TestSearchAll_Truncates(t *testing.T) {
	r := newTestRegistry(t, Options{})
	for i := 0; i < 4; i++ {
		remember(t, r, nil, "shared keyword global")
		remember(t, r, ptr("alpha"), "shared keyword alpha")
	}

	results, err := r.SearchAll(context.Background(),
		criteria(t, types.PhraseQuery("keyword"), types.WithLimit(3)))
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearchByTags_NewestFirstAcrossStores(t *testing.T) {
	r := newTestRegistry(t, Options{})
	older := remember(t, r, nil, "old decision", "arch", "db")
	time.Sleep(5 * time.Millisecond)
	newer := remember(t, r, ptr("alpha"), "new decision", "ARCH", "db")
	remember(t, r, ptr("alpha"), "only one tag", "arch")

	c := criteria(t, types.TermsQuery("arch", "db"))
	results, err := r.SearchByTags(context.Background(), c, []string{"arch", "db"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, newer.ID, results[0].ID)
	assert.Equal(t, older.ID, results[1].ID)

	_, err = r.SearchByTags(context.Background(), c, []string{" "})
	assert.ErrorIs(t, err, types.ErrNoTags)
}

func TestTagStats(t *testing.T) {
	r := newTestRegistry(t, Options{})
	remember(t, r, nil, "one", "go", "testing")
	remember(t, r, ptr("alpha"), "two", "go")
	remember(t, r, ptr("beta"), "three", "go", "sql")

	all, err := r.TagStats(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, []types.TagCount{
		{Tag: "go", Count: 3},
		{Tag: "sql", Count: 1},
		{Tag: "testing", Count: 1},
	}, all)

	scoped, err := r.TagStats(context.Background(), ptr("beta"), "")
	require.NoError(t, err)
	assert.Equal(t, []types.TagCount{{Tag: "go", Count: 1}, {Tag: "sql", Count: 1}}, scoped)
}
