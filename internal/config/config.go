// Package config loads the server configuration.
//
// Configuration is an explicit value: Load builds it from defaults, an
// optional file and RECALL_* environment variables, and callers pass the
// relevant sections to each component's constructor.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of recognised environment variables.
const EnvPrefix = "RECALL"

// Config is the full server configuration.
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Log       LogConfig       `mapstructure:"log"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Recency   RecencyConfig   `mapstructure:"recency"`
	Search    SearchConfig    `mapstructure:"search"`
	Indexer   IndexerConfig   `mapstructure:"indexer"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	File   string `mapstructure:"file"`
}

// VectorConfig controls semantic search.
type VectorConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	MaxDistance float64 `mapstructure:"max_distance"` // results farther than this are discarded; 0 keeps all
}

// RecencyConfig controls time-decay re-ranking. AgingFactor 0 disables it.
type RecencyConfig struct {
	AgingFactor  float64 `mapstructure:"aging_factor"`
	HalfLifeDays float64 `mapstructure:"half_life_days"`
}

// SearchConfig holds search defaults and hybrid candidate expansion.
type SearchConfig struct {
	DefaultLimit           int `mapstructure:"default_limit"`
	ExpansionFactor        int `mapstructure:"expansion_factor"`
	RecencyExpansionFactor int `mapstructure:"recency_expansion_factor"`
}

// IndexerConfig controls the background embedding worker.
type IndexerConfig struct {
	BatchSize      int           `mapstructure:"batch_size"`
	BatchWait      time.Duration `mapstructure:"batch_wait"`
	StopTimeout    time.Duration `mapstructure:"stop_timeout"`
	RescanSchedule string        `mapstructure:"rescan_schedule"` // cron spec, empty disables
}

// EmbeddingConfig describes the external embedding worker process.
type EmbeddingConfig struct {
	Command        string        `mapstructure:"command"`
	Args           []string      `mapstructure:"args"`
	ReadyMarker    string        `mapstructure:"ready_marker"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	QueryCacheSize int           `mapstructure:"query_cache_size"`
}

// DefaultDataDir returns ~/.recall, or ./.recall if the home directory is
// unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".recall"
	}
	return filepath.Join(home, ".recall")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", "")

	v.SetDefault("vector.enabled", true)
	v.SetDefault("vector.max_distance", 1.0)

	v.SetDefault("recency.aging_factor", 0.0)
	v.SetDefault("recency.half_life_days", 30.0)

	v.SetDefault("search.default_limit", 10)
	v.SetDefault("search.expansion_factor", 2)
	v.SetDefault("search.recency_expansion_factor", 3)

	v.SetDefault("indexer.batch_size", 10)
	v.SetDefault("indexer.batch_wait", 2*time.Second)
	v.SetDefault("indexer.stop_timeout", 5*time.Second)
	v.SetDefault("indexer.rescan_schedule", "")

	v.SetDefault("embedding.command", "")
	v.SetDefault("embedding.args", []string{})
	v.SetDefault("embedding.ready_marker", "EMBEDDER_READY")
	v.SetDefault("embedding.startup_timeout", 120*time.Second)
	v.SetDefault("embedding.request_timeout", 30*time.Second)
	v.SetDefault("embedding.query_cache_size", 1000)
}

// Load builds a Config. configPath may be empty; a missing file at an
// explicit path is an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.HasPrefix(cfg.DataDir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DataDir = filepath.Join(home, cfg.DataDir[2:])
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.DataDir == "":
		return fmt.Errorf("%w: data_dir is required", ErrInvalidConfig)
	case c.Recency.AgingFactor < 0 || c.Recency.AgingFactor > 1:
		return fmt.Errorf("%w: recency.aging_factor must be within [0,1], got %v", ErrInvalidConfig, c.Recency.AgingFactor)
	case c.Recency.HalfLifeDays <= 0:
		return fmt.Errorf("%w: recency.half_life_days must be > 0", ErrInvalidConfig)
	case c.Vector.MaxDistance < 0:
		return fmt.Errorf("%w: vector.max_distance must be >= 0", ErrInvalidConfig)
	case c.Search.DefaultLimit <= 0:
		return fmt.Errorf("%w: search.default_limit must be > 0", ErrInvalidConfig)
	case c.Search.ExpansionFactor < 1 || c.Search.RecencyExpansionFactor < 1:
		return fmt.Errorf("%w: search expansion factors must be >= 1", ErrInvalidConfig)
	case c.Indexer.BatchSize <= 0:
		return fmt.Errorf("%w: indexer.batch_size must be > 0", ErrInvalidConfig)
	case c.Indexer.BatchWait <= 0 || c.Indexer.StopTimeout <= 0:
		return fmt.Errorf("%w: indexer durations must be > 0", ErrInvalidConfig)
	case c.Embedding.StartupTimeout <= 0 || c.Embedding.RequestTimeout <= 0:
		return fmt.Errorf("%w: embedding timeouts must be > 0", ErrInvalidConfig)
	}
	return nil
}

// ProjectsDir is where per-project stores live.
func (c *Config) ProjectsDir() string {
	return filepath.Join(c.DataDir, "projects")
}
