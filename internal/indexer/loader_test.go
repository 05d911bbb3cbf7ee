package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/elastipass/internal/engine"
	"github.com/hyperjump/elastipass/internal/fileid"
)

type memoryIndex struct {
	mu      sync.Mutex
	batches [][]engine.Document
	err     error
}

func (m *memoryIndex) IndexDocuments(_ context.Context, docs []engine.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, append([]engine.Document(nil), docs...))
	return nil
}

func (m *memoryIndex) docs() []engine.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []engine.Document
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_jsonLines(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "leak.jsonl", `{"id": "u1", "email": "alice@example.com", "password": "hunter2"}

{"email": "bob@example.com", "password": "letmein"}
{"_id": 42, "email": "carol@example.org"}
`)
	idx := &memoryIndex{}
	ld := NewLoader(idx, []string{".jsonl"}, WithBatchSize(2))
	n, err := ld.LoadFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("loaded %d, want 3", n)
	}
	if len(idx.batches) != 2 {
		t.Errorf("expected 2 batches of at most 2, got %d", len(idx.batches))
	}
	docs := idx.docs()
	if docs[0].ID != "u1" || docs[0].Fields["password"] != "hunter2" {
		t.Errorf("explicit id: %+v", docs[0])
	}
	if _, ok := docs[0].Fields["id"]; ok {
		t.Error("id should not be stored as a field")
	}
	abs, _ := filepath.Abs(path)
	if docs[1].ID != fileid.RecordID(abs, 3) {
		t.Errorf("line-derived id: got %q", docs[1].ID)
	}
	if docs[2].ID != "42" {
		t.Errorf("numeric _id: got %q", docs[2].ID)
	}
}

func TestLoadFile_jsonArrayWithSource(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "export.json", `
[
  {"_id": "a", "_source": {"email": "a@x.y", "username": "a"}},
  {"email": "b@x.y"}
]`)
	idx := &memoryIndex{}
	n, err := NewLoader(idx, nil).LoadFile(context.Background(), path)
	if err != nil || n != 2 {
		t.Fatalf("LoadFile = %d, %v", n, err)
	}
	docs := idx.docs()
	if docs[0].ID != "a" || docs[0].Fields["username"] != "a" {
		t.Errorf("_source unwrapped: %+v", docs[0])
	}
	abs, _ := filepath.Abs(path)
	if docs[1].ID != fileid.RecordID(abs, 2) {
		t.Errorf("array position id: %q", docs[1].ID)
	}
}

func TestLoadFile_skipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.jsonl", `{"email": "x@y.z"}`+"\n")
	idx := &memoryIndex{}
	ld := NewLoader(idx, nil)
	if n, _ := ld.LoadFile(context.Background(), path); n != 1 {
		t.Fatalf("first load: %d", n)
	}
	if n, err := ld.LoadFile(context.Background(), path); n != 0 || err != nil {
		t.Errorf("unchanged file should be skipped, got %d, %v", n, err)
	}
	if err := os.WriteFile(path, []byte(`{"email": "x@y.z"}`+"\n"+`{"email": "w@y.z"}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if n, _ := ld.LoadFile(context.Background(), path); n != 2 {
		t.Errorf("changed file should reload, got %d", n)
	}
}

func TestLoadFile_errors(t *testing.T) {
	dir := t.TempDir()
	ld := NewLoader(&memoryIndex{}, []string{".json"})
	if _, err := ld.LoadFile(context.Background(), writeFile(t, dir, "notes.txt", "{}")); err == nil {
		t.Error("expected extension error")
	}
	if _, err := ld.LoadFile(context.Background(), writeFile(t, dir, "bad.json", "{broken")); err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Errorf("expected parse error, got %v", err)
	}
	if _, err := ld.LoadFile(context.Background(), filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected stat error")
	}

	failing := NewLoader(&memoryIndex{err: errors.New("index closed")}, nil)
	if _, err := failing.LoadFile(context.Background(), writeFile(t, dir, "ok.json", `[{"email": "a"}]`)); err == nil {
		t.Error("index errors should propagate")
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jsonl", `{"email": "a@x"}`+"\n")
	writeFile(t, dir, "nested/b.ndjson", `{"email": "b@x"}`+"\n"+`{"email": "c@x"}`+"\n")
	writeFile(t, dir, "README.md", "not a dump")
	writeFile(t, dir, "empty.json", "  \n")

	idx := &memoryIndex{}
	n, err := NewLoader(idx, []string{".json", ".jsonl", ".ndjson"}).LoadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("loaded %d, want 3", n)
	}
}

func TestLoadReader(t *testing.T) {
	idx := &memoryIndex{}
	n, err := NewLoader(idx, nil).LoadReader(context.Background(), strings.NewReader(`{"email": "a"}`+"\n"+`{"email": "b"}`))
	if err != nil || n != 2 {
		t.Fatalf("LoadReader = %d, %v", n, err)
	}
	docs := idx.docs()
	if docs[0].ID == "" || docs[0].ID == docs[1].ID {
		t.Errorf("random ids expected: %q %q", docs[0].ID, docs[1].ID)
	}
}

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".json", []string{".json", ".jsonl"}, true},
		{".JSONL", []string{"jsonl"}, true},
		{".txt", []string{".json"}, false},
		{"", []string{".json"}, false},
		{".anything", nil, true},
	}
	for _, tt := range tests {
		if got := extensionAllowed(tt.ext, tt.allowed); got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}
