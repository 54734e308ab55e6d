package cli

import (
	"errors"

	"github.com/dshills/recall-mcp/internal/config"
	"github.com/dshills/recall-mcp/internal/embedder"
	"github.com/dshills/recall-mcp/internal/indexer"
	"github.com/dshills/recall-mcp/internal/logging"
	"github.com/dshills/recall-mcp/internal/ranking"
	"github.com/dshills/recall-mcp/internal/registry"
	"github.com/dshills/recall-mcp/internal/service"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg      *config.Config
	log      *logging.Logger
	client   *embedder.Client
	registry *registry.Registry
	indexer  *indexer.Indexer
	svc      *service.Service
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.pretty {
		cfg.Log.Pretty = true
	}
	return cfg, cfg.Validate()
}

func newApp(opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, File: cfg.Log.File})
	if err != nil {
		return nil, err
	}

	locate := embedder.CommandLocator(cfg.Embedding.Command, cfg.Embedding.Args)
	client := embedder.NewClient(embedder.Config{
		Locate:         locate,
		ReadyMarker:    cfg.Embedding.ReadyMarker,
		StartupTimeout: cfg.Embedding.StartupTimeout,
		RequestTimeout: cfg.Embedding.RequestTimeout,
	}, logger.Logger)

	recency := ranking.Recency{AgingFactor: cfg.Recency.AgingFactor, HalfLifeDays: cfg.Recency.HalfLifeDays}

	reg := registry.New(cfg.DataDir, registry.Options{
		VectorAvailable:        func() bool { return cfg.Vector.Enabled && embedder.Available(locate) },
		Embedder:               embedder.NewCachedEmbedder(client, cfg.Embedding.QueryCacheSize),
		MaxDistance:            cfg.Vector.MaxDistance,
		Recency:                recency,
		ExpansionFactor:        cfg.Search.ExpansionFactor,
		RecencyExpansionFactor: cfg.Search.RecencyExpansionFactor,
		Logger:                 logger.Logger,
	})

	idx := indexer.New(client, reg, indexer.Options{
		BatchSize:      cfg.Indexer.BatchSize,
		BatchWait:      cfg.Indexer.BatchWait,
		StopTimeout:    cfg.Indexer.StopTimeout,
		RescanSchedule: cfg.Indexer.RescanSchedule,
	}, logger.Logger)

	svc := service.New(reg, service.Options{
		Pipeline:               idx,
		Health:                 client,
		VectorEnabled:          cfg.Vector.Enabled,
		Recency:                recency,
		DefaultLimit:           cfg.Search.DefaultLimit,
		RecencyExpansionFactor: cfg.Search.RecencyExpansionFactor,
		Logger:                 logger.Logger,
	})

	return &app{cfg: cfg, log: logger, client: client, registry: reg, indexer: idx, svc: svc}, nil
}

// close stops the pipeline and the worker process, then closes every store.
func (a *app) close() error {
	if a.indexer.Running() {
		a.indexer.Stop()
	} else if err := a.client.Shutdown(); err != nil {
		a.log.Warn().Err(err).Msg("embedder shutdown failed")
	}
	return errors.Join(a.registry.Close(), a.log.Close())
}
