// Package audit records completed searches to an append-only sink.
package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/elastipass/internal/metrics"
	"github.com/hyperjump/elastipass/internal/models"
	"github.com/hyperjump/elastipass/internal/pool"
)

const defaultTimeout = 10 * time.Second

// Sink appends audit records. Implementations must be safe for concurrent use.
type Sink interface {
	Name() string
	Append(ctx context.Context, rec *models.AuditRecord) error
	Close() error
}

// Logger decides whether a search is recorded and hands records to the sink in the background.
type Logger struct {
	sink    Sink
	pool    *pool.Pool
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Logger.
type Option func(*Logger)

// WithLogger sets the logger used for write diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(a *Logger) { a.logger = l }
}

// WithTimeout bounds each sink write.
func WithTimeout(d time.Duration) Option {
	return func(a *Logger) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewLogger creates an audit logger. A nil sink disables recording.
func NewLogger(sink Sink, p *pool.Pool, opts ...Option) *Logger {
	a := &Logger{sink: sink, pool: p, timeout: defaultTimeout, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ShouldLog reports whether a successful search described by d is recorded.
func (a *Logger) ShouldLog(d *models.Descriptor) bool {
	return a != nil && a.sink != nil && !d.SuppressLog && !d.IsEmpty()
}

// NewRecord builds the record for a completed search. Kind, field and limit are stored as
// the client supplied them: empty or zero when left to the default. Kind and field are
// always empty for raw structured queries, which bypass them.
func NewRecord(d *models.Descriptor, rs *models.ResultSet, executedAt time.Time) *models.AuditRecord {
	rec := &models.AuditRecord{
		Timestamp: executedAt.UTC(),
		Query:     d.QueryString(),
		Limit:     d.Requested.Limit,
		Took:      rs.Took,
		TimedOut:  rs.TimedOut,
		Hits:      rs.Total,
	}
	if !d.IsRaw() {
		rec.Kind = d.Requested.Kind
		rec.Field = d.Requested.Field
	}
	return rec
}

// Log queues rec for writing. It never blocks on the sink; when the backlog is full the
// record is dropped with a warning.
func (a *Logger) Log(rec *models.AuditRecord) {
	if a == nil || a.sink == nil {
		return
	}
	name := a.sink.Name()
	ok := a.pool.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.sink.Append(ctx, rec); err != nil {
			metrics.AuditWritesTotal.WithLabelValues(name, metrics.AuditFailed).Inc()
			a.logger.Warn("audit write failed",
				zap.String("sink", name),
				zap.Error(fmt.Errorf("%w: %v", models.ErrSinkWrite, err)))
			return
		}
		metrics.AuditWritesTotal.WithLabelValues(name, metrics.AuditWritten).Inc()
	})
	if !ok {
		metrics.AuditWritesTotal.WithLabelValues(name, metrics.AuditDropped).Inc()
		a.logger.Warn("audit backlog full", zap.String("sink", name), zap.String("q", rec.Query))
	}
}

// Close closes the sink. Drain the pool first so queued writes are not lost.
func (a *Logger) Close() error {
	if a == nil || a.sink == nil {
		return nil
	}
	return a.sink.Close()
}
