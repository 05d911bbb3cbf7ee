package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyperjump/elastipass/internal/audit"
	"github.com/hyperjump/elastipass/internal/engine"
	"github.com/hyperjump/elastipass/internal/models"
	"github.com/hyperjump/elastipass/internal/pool"
)

type fakeEngine struct {
	mu       sync.Mutex
	requests []*engine.Request
	result   *models.ResultSet
	err      error
}

func (e *fakeEngine) Search(_ context.Context, req *engine.Request) (*models.ResultSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func (e *fakeEngine) Close() error { return nil }

func (e *fakeEngine) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

type memorySink struct {
	mu      sync.Mutex
	records []*models.AuditRecord
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Append(_ context.Context, rec *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) Close() error { return nil }

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

type harness struct {
	gw     *Gateway
	engine *fakeEngine
	sink   *memorySink
	pool   *pool.Pool
	logs   *observer.ObservedLogs
}

func newHarness(t *testing.T, eng *fakeEngine) *harness {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	p := pool.New(2, 8)
	sink := &memorySink{}
	gw := NewGateway(Config{
		Engine:  eng,
		Backend: "fake",
		Audit:   audit.NewLogger(sink, p, audit.WithLogger(logger)),
		Pool:    p,
		Logger:  logger,
		Index:   "pwd_*",
		DocType: "account",
		Now:     func() time.Time { return fixedNow },
	})
	return &harness{gw: gw, engine: eng, sink: sink, pool: p, logs: logs}
}

// records drains the pool and returns what reached the sink.
func (h *harness) records() []*models.AuditRecord {
	h.pool.Close()
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return h.sink.records
}

func oneHit() *models.ResultSet {
	return &models.ResultSet{
		Hits:  []models.Hit{{ID: "1", Score: 2, Fields: map[string]any{"email": "alice@example.com"}}},
		Total: 1,
		Took:  3,
	}
}

func TestGateway_Search(t *testing.T) {
	h := newHarness(t, &fakeEngine{result: oneHit()})
	resp, err := h.gw.Search(context.Background(), map[string]any{"q": "alice@example.com", "limit": "5", "offset": "10"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0]["id"] != "1" || resp.Total != 1 || *resp.Took != 3 {
		t.Fatalf("response: %+v", resp)
	}

	req := h.engine.requests[0]
	if req.Index != "pwd_*" || req.DocType != "account" || req.Query.Offset != 10 || req.Query.Limit != 5 {
		t.Errorf("engine request: %+v / %+v", req, req.Query)
	}
	if len(req.Query.Should) != 1 || req.Query.Should[0].Field != "email.raw" || req.Query.Should[0].Kind != models.KindTerm {
		t.Errorf("default clause: %+v", req.Query.Should)
	}

	recs := h.records()
	if len(recs) != 1 {
		t.Fatalf("expected one audit record, got %d", len(recs))
	}
	want := models.AuditRecord{
		Timestamp: fixedNow, Query: "alice@example.com", Limit: 5, Took: 3, Hits: 1,
	}
	if *recs[0] != want {
		t.Errorf("record: got %+v, want %+v", *recs[0], want)
	}
}

func TestGateway_emptyQueryShortCircuits(t *testing.T) {
	for name, args := range map[string]map[string]any{
		"missing q":     {"limit": "10"},
		"empty q":       {"q": ""},
		"empty mapping": {"q": map[string]any{}},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, &fakeEngine{result: oneHit()})
			resp, err := h.gw.Search(context.Background(), args)
			if err != nil {
				t.Fatal(err)
			}
			if len(resp.Results) != 0 || resp.Results == nil || resp.Total != 0 {
				t.Errorf("response: %+v", resp)
			}
			if h.engine.calls() != 0 {
				t.Error("engine must not be called")
			}
			if len(h.records()) != 0 {
				t.Error("nothing must be recorded")
			}
		})
	}
}

func TestGateway_engineFailure(t *testing.T) {
	h := newHarness(t, &fakeEngine{err: errors.New("connection refused")})
	resp, err := h.gw.Search(context.Background(), map[string]any{"q": "bob"})
	if err != nil {
		t.Fatalf("engine failures are not client errors: %v", err)
	}
	if len(resp.Results) != 0 || resp.Total != 0 || resp.Took != nil {
		t.Errorf("response: %+v", resp)
	}
	entries := h.logs.FilterMessage("query error").All()
	if len(entries) != 1 || entries[0].Level != zap.ErrorLevel {
		t.Fatalf("expected one query error, got %v", h.logs.All())
	}
	if len(h.records()) != 0 {
		t.Error("failed searches are not recorded")
	}
}

func TestGateway_invalidParameters(t *testing.T) {
	for name, args := range map[string]map[string]any{
		"bad limit":    {"q": "x", "limit": "many"},
		"unknown kind": {"q": "x", "kind": "prefix"},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, &fakeEngine{result: oneHit()})
			_, err := h.gw.Search(context.Background(), args)
			if !errors.Is(err, models.ErrInvalidParameter) {
				t.Errorf("expected ErrInvalidParameter, got %v", err)
			}
			if h.engine.calls() != 0 {
				t.Error("engine must not be called")
			}
		})
	}
}

func TestGateway_suppression(t *testing.T) {
	for name, args := range map[string]map[string]any{
		"nolog":       {"q": "x", "nolog": "1"},
		"second page": {"q": "x", "page": "2", "limit": "10"},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, &fakeEngine{result: oneHit()})
			if _, err := h.gw.Search(context.Background(), args); err != nil {
				t.Fatal(err)
			}
			if h.engine.calls() != 1 {
				t.Error("engine should still run")
			}
			if len(h.records()) != 0 {
				t.Error("suppressed searches are not recorded")
			}
		})
	}
}

func TestGateway_rawQuery(t *testing.T) {
	h := newHarness(t, &fakeEngine{result: oneHit()})
	args := map[string]any{
		"query": map[string]any{"match": map[string]any{"username": "carol"}},
		"limit": "3",
	}
	if _, err := h.gw.Search(context.Background(), args); err != nil {
		t.Fatal(err)
	}
	q := h.engine.requests[0].Query
	if !q.IsRaw() || q.Limit != 3 || q.Raw["limit"] != nil {
		t.Errorf("raw query: %+v", q)
	}
	recs := h.records()
	if len(recs) != 1 || recs[0].Query != `{"query":{"match":{"username":"carol"}}}` || recs[0].Kind != "" {
		t.Errorf("records: %+v", recs)
	}
}

func TestGateway_pageWindow(t *testing.T) {
	h := newHarness(t, &fakeEngine{result: oneHit()})
	if _, err := h.gw.Search(context.Background(), map[string]any{"q": "x", "page": "3", "limit": "10"}); err != nil {
		t.Fatal(err)
	}
	q := h.engine.requests[0].Query
	if q.Offset != 20 || q.Limit != 10 {
		t.Errorf("window: offset=%d limit=%d", q.Offset, q.Limit)
	}
}
