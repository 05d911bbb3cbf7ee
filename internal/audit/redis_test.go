package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/hyperjump/elastipass/internal/models"
)

type fakeStream struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	return redis.NewStringResult("1-0", f.err)
}

func TestRedisSink_Append(t *testing.T) {
	f := &fakeStream{}
	s := newRedisSink(f, "", 1000)
	rec := &models.AuditRecord{Query: "alice", Kind: "term", Hits: 3}
	if err := s.Append(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if len(f.args) != 1 {
		t.Fatalf("expected one XADD, got %d", len(f.args))
	}
	a := f.args[0]
	if a.Stream != DefaultStream || a.MaxLen != 1000 || !a.Approx {
		t.Errorf("args: %+v", a)
	}
	values := a.Values.(map[string]any)
	var got models.AuditRecord
	if err := json.Unmarshal([]byte(values["record"].(string)), &got); err != nil {
		t.Fatal(err)
	}
	if got.Query != "alice" || got.Hits != 3 || values["q"] != "alice" {
		t.Errorf("values: %v", values)
	}
}

func TestRedisSink_UnboundedAndError(t *testing.T) {
	f := &fakeStream{err: errors.New("READONLY")}
	s := newRedisSink(f, "custom", 0)
	if err := s.Append(context.Background(), &models.AuditRecord{Query: "x"}); err == nil {
		t.Error("expected the XADD error")
	}
	if f.args[0].Stream != "custom" || f.args[0].MaxLen != 0 {
		t.Errorf("args: %+v", f.args[0])
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close without a client: %v", err)
	}
}
