// Package engine runs built queries against a search backend.
package engine

import (
	"context"
	"fmt"

	"github.com/hyperjump/elastipass/internal/models"
	"github.com/hyperjump/elastipass/internal/query"
)

// Request is a windowed query against an index.
type Request struct {
	Query   *query.Query
	Index   string
	DocType string
}

// Engine executes queries. Implementations must be safe for concurrent use.
type Engine interface {
	Search(ctx context.Context, req *Request) (*models.ResultSet, error)
	Close() error
}

// DocumentWriter stores a single document in an index. Used by the engine audit sink.
type DocumentWriter interface {
	WriteDocument(ctx context.Context, index string, doc any) error
}

// Document is an account record to be indexed.
type Document struct {
	ID     string
	Fields map[string]any
}

func executionError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrEngineExecution, fmt.Sprintf(format, args...))
}
