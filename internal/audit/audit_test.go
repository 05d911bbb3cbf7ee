package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyperjump/elastipass/internal/models"
	"github.com/hyperjump/elastipass/internal/pool"
)

type memorySink struct {
	mu      sync.Mutex
	records []*models.AuditRecord
	err     error
	block   chan struct{}
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Append(ctx context.Context, rec *models.AuditRecord) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) Close() error { return nil }

func (s *memorySink) all() []*models.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.AuditRecord(nil), s.records...)
}

func TestLogger_ShouldLog(t *testing.T) {
	a := NewLogger(&memorySink{}, pool.New(1, 1))
	tests := []struct {
		name string
		d    *models.Descriptor
		want bool
	}{
		{"text", &models.Descriptor{Text: "alice"}, true},
		{"raw", &models.Descriptor{Raw: map[string]any{"match_all": map[string]any{}}}, true},
		{"suppressed", &models.Descriptor{Text: "alice", SuppressLog: true}, false},
		{"empty", &models.Descriptor{}, false},
		{"empty mapping", &models.Descriptor{Raw: map[string]any{}}, false},
	}
	for _, tt := range tests {
		if got := a.ShouldLog(tt.d); got != tt.want {
			t.Errorf("%s: ShouldLog = %v, want %v", tt.name, got, tt.want)
		}
	}
	if NewLogger(nil, pool.New(1, 1)).ShouldLog(&models.Descriptor{Text: "x"}) {
		t.Error("logger without a sink should never log")
	}
}

func TestNewRecord(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	rs := &models.ResultSet{Total: 12, Took: 5, TimedOut: true}

	d := models.NewDescriptor("", "")
	d.Text = "alice"
	d.Kind = models.KindWildcard
	d.Field = "username.raw"
	d.Limit = 50
	d.Requested = models.Requested{Kind: "wildcard", Field: "username.raw", Limit: 50}
	rec := NewRecord(d, rs, at)
	want := models.AuditRecord{
		Timestamp: at.UTC(), Query: "alice", Kind: "wildcard", Field: "username.raw",
		Limit: 50, Took: 5, TimedOut: true, Hits: 12,
	}
	if *rec != want {
		t.Errorf("got %+v, want %+v", *rec, want)
	}
	if rec.Timestamp.Location() != time.UTC {
		t.Error("timestamp should be UTC")
	}

	defaulted := models.NewDescriptor("", "")
	defaulted.Text = "bob"
	rec = NewRecord(defaulted, rs, at)
	if rec.Kind != "" || rec.Field != "" || rec.Limit != 0 {
		t.Errorf("defaulted parameters should be recorded empty, got %q/%q/%d", rec.Kind, rec.Field, rec.Limit)
	}

	raw := models.NewDescriptor("", "")
	raw.Raw = map[string]any{"size": 1, "query": map[string]any{"match_all": map[string]any{}}}
	rec = NewRecord(raw, rs, at)
	if rec.Query != `{"query":{"match_all":{}},"size":1}` {
		t.Errorf("raw query string: got %q", rec.Query)
	}
	if rec.Kind != "" || rec.Field != "" {
		t.Errorf("raw queries carry no kind/field, got %q/%q", rec.Kind, rec.Field)
	}
}

func TestLogger_LogWritesInBackground(t *testing.T) {
	sink := &memorySink{}
	p := pool.New(2, 4)
	a := NewLogger(sink, p, WithTimeout(time.Second))
	a.Log(&models.AuditRecord{Query: "one"})
	a.Log(&models.AuditRecord{Query: "two"})
	p.Close()
	if got := sink.all(); len(got) != 2 {
		t.Errorf("expected 2 records after drain, got %d", len(got))
	}
}

func TestLogger_SinkFailureIsDiagnosticOnly(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := &memorySink{err: errors.New("disk full")}
	p := pool.New(1, 1)
	a := NewLogger(sink, p, WithLogger(zap.New(core)))
	a.Log(&models.AuditRecord{Query: "x"})
	p.Close()

	entries := logs.FilterMessage("audit write failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one warning, got %d", len(entries))
	}
	err, _ := entries[0].ContextMap()["error"].(string)
	if err == "" {
		t.Error("warning should carry the error")
	}
}

func TestLogger_BacklogFull(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := &memorySink{block: make(chan struct{})}
	p := pool.New(1, 1)
	a := NewLogger(sink, p, WithLogger(zap.New(core)))

	a.Log(&models.AuditRecord{Query: "kept"})
	a.Log(&models.AuditRecord{Query: "dropped"})
	close(sink.block)
	p.Close()

	if logs.FilterMessage("audit backlog full").Len() != 1 {
		t.Errorf("expected a backlog warning, got %v", logs.All())
	}
	if got := sink.all(); len(got) != 1 || got[0].Query != "kept" {
		t.Errorf("got %+v", got)
	}
}

type recordingWriter struct {
	index string
	doc   any
}

func (w *recordingWriter) WriteDocument(_ context.Context, index string, doc any) error {
	w.index, w.doc = index, doc
	return nil
}

func TestEngineSink(t *testing.T) {
	w := &recordingWriter{}
	s := NewEngineSink(w, "")
	rec := &models.AuditRecord{Query: "bob"}
	if err := s.Append(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if w.index != DefaultIndex || w.doc != rec {
		t.Errorf("got index=%q doc=%v", w.index, w.doc)
	}
	if s.Name() != "engine" {
		t.Errorf("name: %q", s.Name())
	}
}
