package cmd

import (
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/docfind/internal/config"
	"github.com/Aman-CERP/docfind/internal/document"
	"github.com/Aman-CERP/docfind/internal/ingest"
	"github.com/Aman-CERP/docfind/internal/loader"
	"github.com/Aman-CERP/docfind/internal/logging"
	"github.com/Aman-CERP/docfind/internal/search"
	"github.com/Aman-CERP/docfind/internal/store"
	"github.com/Aman-CERP/docfind/internal/telemetry"
)

// newService wires the loader, extractor, engine and repository from cfg.
// metrics may be nil.
func newService(cfg *config.Config, logger *slog.Logger, metrics *telemetry.Collector) (*ingest.Service, error) {
	repo, err := store.NewMemoryRepository(cfg.Store.MaxDocuments, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create document store: %w", err)
	}

	engineOpts := []search.EngineOption{search.WithLogger(logger)}
	if metrics != nil {
		engineOpts = append(engineOpts, search.WithMetrics(metrics))
	}
	engine := search.NewEngine(search.Config{
		ContextRadius:    cfg.Search.ContextRadius,
		MaxResults:       cfg.Search.MaxResults,
		PatternCacheSize: cfg.Search.PatternCacheSize,
	}, engineOpts...)

	return ingest.New(
		repo,
		loader.New(loader.WithNormalize(cfg.Extract.Normalize), loader.WithLogger(logger)),
		document.NewExtractor(document.WithWorkers(cfg.Extract.Workers), document.WithLogger(logger)),
		engine,
		ingest.WithLogger(logger),
		ingest.WithLimits(ingest.Limits{
			MaxBytes:     cfg.Upload.MaxBytes,
			AllowedTypes: cfg.Upload.AllowedTypes,
		}),
	), nil
}

// openMetrics returns a collector persisting to the configured SQLite file,
// or nil when telemetry is disabled. The cleanup flushes and closes it.
func openMetrics(cfg *config.Config, logger *slog.Logger) (*telemetry.Collector, func(), error) {
	if !cfg.Telemetry.Enabled {
		return nil, func() {}, nil
	}
	st, err := telemetry.OpenSQLiteStore(cfg.Telemetry.DBPath)
	if err != nil {
		return nil, nil, err
	}
	tcfg := telemetry.DefaultConfig()
	tcfg.FlushInterval = cfg.Telemetry.FlushDuration()
	c := telemetry.NewCollector(st, tcfg)
	return c, func() {
		if err := c.Close(); err != nil {
			logger.Warn("telemetry flush failed", slog.String("error", err.Error()))
		}
	}, nil
}

// fileLogger returns a logger that writes to the rotating log file only,
// so command output on stdout and stderr stays clean. With --debug the
// already-installed debug logger is reused.
func (o *rootOptions) fileLogger() (*slog.Logger, func()) {
	if o.debug {
		return slog.Default(), func() {}
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = o.cfg.Server.LogLevel
	logCfg.Stderr = false
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return slog.New(slog.DiscardHandler), func() {}
	}
	return logger, cleanup
}
