package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/elastipass/internal/audit"
	"github.com/hyperjump/elastipass/internal/config"
	"github.com/hyperjump/elastipass/internal/engine"
	"github.com/hyperjump/elastipass/internal/indexer"
	"github.com/hyperjump/elastipass/internal/pool"
	"github.com/hyperjump/elastipass/internal/search"
)

// Components holds initialized services.
type Components struct {
	Engine  engine.Engine
	Bleve   *engine.Bleve
	Pool    *pool.Pool
	Audit   *audit.Logger
	Gateway *search.Gateway
	Loader  *indexer.Loader
}

// Close drains pending audit writes before closing the sink and the engine.
func (c *Components) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.Audit != nil {
		_ = c.Audit.Close()
	}
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	c := &Components{}
	var elastic *engine.Elastic
	switch cfg.Engine.Backend {
	case config.BackendBleve:
		b, err := engine.NewBleve(cfg.Engine.BleveIndexPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bleve index: %w", err)
		}
		c.Engine, c.Bleve = b, b
		loaderOpts := []indexer.LoaderOption{}
		if debug {
			loaderOpts = append(loaderOpts, indexer.WithLogger(logger))
		}
		c.Loader = indexer.NewLoader(b, cfg.Watch.Extensions, loaderOpts...)
	default:
		e, err := engine.NewElastic(engine.ElasticConfig{
			Addresses: cfg.Engine.Addresses,
			Username:  cfg.Engine.Username,
			Password:  cfg.Engine.Password,
			Timeout:   cfg.Engine.EngineTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
		}
		c.Engine, elastic = e, e
	}
	logger.Info("engine initialized", zap.String("backend", cfg.Engine.Backend))

	sink, err := newSink(&cfg.Audit, elastic)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize audit sink: %w", err)
	}
	c.Pool = pool.New(cfg.Search.Workers, cfg.Search.Backlog)
	c.Audit = audit.NewLogger(sink, c.Pool,
		audit.WithLogger(logger),
		audit.WithTimeout(cfg.Audit.WriteTimeout()))
	c.Gateway = search.NewGateway(search.Config{
		Engine:  c.Engine,
		Backend: cfg.Engine.Backend,
		Audit:   c.Audit,
		Pool:    c.Pool,
		Logger:  logger,
		Index:   cfg.Search.Index,
		DocType: cfg.Search.DocType,
	})
	return c, nil
}

// newSink opens the configured audit sink. A nil sink disables recording.
func newSink(cfg *config.AuditConfig, elastic *engine.Elastic) (audit.Sink, error) {
	switch cfg.Sink {
	case config.SinkNone:
		return nil, nil
	case config.SinkSQLite:
		return audit.NewSQLiteSink(cfg.DatabasePath)
	case config.SinkRedis:
		return audit.NewRedisSink(cfg.RedisURL, cfg.RedisStream, cfg.RedisMaxLen)
	case config.SinkKafka:
		return audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		if elastic == nil {
			return nil, fmt.Errorf("audit sink %q requires the elasticsearch backend", cfg.Sink)
		}
		return audit.NewEngineSink(elastic, cfg.Index), nil
	}
}

// loadFunc returns the watcher callback that reloads one dump file.
func loadFunc(loader *indexer.Loader, logger *zap.Logger) func(string) {
	return func(path string) {
		n, err := loader.LoadFile(context.Background(), path)
		if err != nil {
			logger.Warn("watch load dump failed", zap.String("path", path), zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("dump loaded", zap.String("path", path), zap.Int("accounts", n))
		}
	}
}
