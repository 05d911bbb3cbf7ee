// Package search runs a request end to end: normalize, build, execute, shape and record.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/elastipass/internal/audit"
	"github.com/hyperjump/elastipass/internal/engine"
	"github.com/hyperjump/elastipass/internal/metrics"
	"github.com/hyperjump/elastipass/internal/models"
	"github.com/hyperjump/elastipass/internal/params"
	"github.com/hyperjump/elastipass/internal/pool"
	"github.com/hyperjump/elastipass/internal/query"
)

// Config wires a Gateway. Engine is required; a nil Audit disables recording and a nil
// Pool gets a default-sized one.
type Config struct {
	Engine  engine.Engine
	Backend string
	Audit   *audit.Logger
	Pool    *pool.Pool
	Logger  *zap.Logger
	Index   string
	DocType string
	Now     func() time.Time
}

// Gateway is safe for concurrent use.
type Gateway struct {
	engine     engine.Engine
	backend    string
	audit      *audit.Logger
	pool       *pool.Pool
	logger     *zap.Logger
	normalizer *params.Normalizer
	now        func() time.Time
}

// NewGateway creates a gateway from cfg.
func NewGateway(cfg Config) *Gateway {
	g := &Gateway{
		engine:     cfg.Engine,
		backend:    cfg.Backend,
		audit:      cfg.Audit,
		pool:       cfg.Pool,
		logger:     cfg.Logger,
		normalizer: params.NewNormalizer(cfg.Index, cfg.DocType),
		now:        cfg.Now,
	}
	if g.pool == nil {
		g.pool = pool.New(pool.DefaultWorkers, pool.DefaultBacklog)
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.backend == "" {
		g.backend = "unknown"
	}
	return g
}

// Search answers one request. Only errors wrapping models.ErrInvalidParameter are returned;
// engine failures are logged and produce an empty response.
func (g *Gateway) Search(ctx context.Context, raw map[string]any) (*models.Response, error) {
	d, err := g.normalizer.Normalize(raw)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, err
	}
	if d.IsEmpty() {
		metrics.SearchesTotal.WithLabelValues(metrics.OutcomeEmpty).Inc()
		return models.EmptyResponse(), nil
	}
	q, err := query.Build(d)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, err
	}

	executedAt := g.now()
	rs, err := g.execute(ctx, &engine.Request{Query: q, Index: d.Index, DocType: d.DocType})
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		g.logger.Error("query error", zap.String("q", d.QueryString()), zap.Error(err))
		return models.EmptyResponse(), nil
	}
	metrics.SearchesTotal.WithLabelValues(metrics.OutcomeOK).Inc()

	resp := Shape(rs)
	g.logger.Debug("search",
		zap.String("q", d.QueryString()),
		zap.String("kind", string(d.Kind)),
		zap.String("field", d.Field),
		zap.Int("offset", d.Offset),
		zap.Int("limit", d.Limit),
		zap.Int64("total", rs.Total),
		zap.Bool("logged", g.audit.ShouldLog(d)))

	if g.audit.ShouldLog(d) {
		g.audit.Log(audit.NewRecord(d, rs, executedAt))
	}
	return resp, nil
}

func (g *Gateway) execute(ctx context.Context, req *engine.Request) (*models.ResultSet, error) {
	var rs *models.ResultSet
	start := time.Now()
	err := g.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		rs, err = g.engine.Search(ctx, req)
		return err
	})
	metrics.EngineDuration.WithLabelValues(g.backend).Observe(time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, models.ErrEngineExecution) {
			err = fmt.Errorf("%w: %v", models.ErrEngineExecution, err)
		}
		return nil, err
	}
	return rs, nil
}
