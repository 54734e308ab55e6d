package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Vector.Enabled)
	assert.Equal(t, 0.0, cfg.Recency.AgingFactor)
	assert.Equal(t, 30.0, cfg.Recency.HalfLifeDays)
	assert.Equal(t, 10, cfg.Indexer.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Indexer.BatchWait)
	assert.Equal(t, 120*time.Second, cfg.Embedding.StartupTimeout)
	assert.Equal(t, 30*time.Second, cfg.Embedding.RequestTimeout)
	assert.Equal(t, 2, cfg.Search.ExpansionFactor)
	assert.Equal(t, 3, cfg.Search.RecencyExpansionFactor)
	assert.Equal(t, "EMBEDDER_READY", cfg.Embedding.ReadyMarker)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RECALL_DATA_DIR", dir)
	t.Setenv("RECALL_RECENCY_AGING_FACTOR", "0.5")
	t.Setenv("RECALL_INDEXER_BATCH_WAIT", "500ms")
	t.Setenv("RECALL_VECTOR_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 0.5, cfg.Recency.AgingFactor)
	assert.Equal(t, 500*time.Millisecond, cfg.Indexer.BatchWait)
	assert.False(t, cfg.Vector.Enabled)
	assert.Equal(t, filepath.Join(dir, "projects"), cfg.ProjectsDir())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.yaml")
	content := `
data_dir: /tmp/recall-test
recency:
  aging_factor: 1.0
  half_life_days: 14
embedding:
  command: /usr/local/bin/embedder
  args: ["--model", "mini"]
  request_timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/recall-test", cfg.DataDir)
	assert.Equal(t, 1.0, cfg.Recency.AgingFactor)
	assert.Equal(t, 14.0, cfg.Recency.HalfLifeDays)
	assert.Equal(t, "/usr/local/bin/embedder", cfg.Embedding.Command)
	assert.Equal(t, []string{"--model", "mini"}, cfg.Embedding.Args)
	assert.Equal(t, 5*time.Second, cfg.Embedding.RequestTimeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := *cfg
	bad.Recency.AgingFactor = 1.5
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = *cfg
	bad.Recency.HalfLifeDays = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = *cfg
	bad.Indexer.BatchSize = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = *cfg
	bad.Search.ExpansionFactor = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = *cfg
	bad.Vector.MaxDistance = -0.1
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

func TestValidate_ZeroMaxDistanceDisablesFilter(t *testing.T) {
	t.Setenv("RECALL_VECTOR_MAX_DISTANCE", "0")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Zero(t, cfg.Vector.MaxDistance)
	assert.NoError(t, cfg.Validate())
}
