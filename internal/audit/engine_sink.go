package audit

import (
	"context"

	"github.com/hyperjump/elastipass/internal/engine"
	"github.com/hyperjump/elastipass/internal/models"
)

// DefaultIndex is the engine index audit records are written to.
const DefaultIndex = "pwdlogs"

// EngineSink writes records as documents into a search engine index.
type EngineSink struct {
	writer engine.DocumentWriter
	index  string
}

// NewEngineSink creates a sink writing to index (DefaultIndex when empty).
func NewEngineSink(w engine.DocumentWriter, index string) *EngineSink {
	if index == "" {
		index = DefaultIndex
	}
	return &EngineSink{writer: w, index: index}
}

func (s *EngineSink) Name() string { return "engine" }

func (s *EngineSink) Append(ctx context.Context, rec *models.AuditRecord) error {
	return s.writer.WriteDocument(ctx, s.index, rec)
}

// Close is a no-op; the engine client is owned by the caller.
func (s *EngineSink) Close() error { return nil }
