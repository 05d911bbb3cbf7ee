package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestUsage(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "audit.db")
	if err := os.WriteFile(db, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	index := filepath.Join(dir, "accounts")
	if err := os.MkdirAll(filepath.Join(index, "store"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(index, "index_meta.json"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(index, "store", "seg"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}

	entries, total, err := Usage(map[string]string{
		"bleve_index": index,
		"audit_db":    db,
		"missing":     filepath.Join(dir, "nope"),
		"unset":       "",
	})
	if err != nil {
		t.Fatal(err)
	}
	if total != 8 {
		t.Errorf("total = %d, want 8", total)
	}
	want := []PathUsage{
		{Name: "audit_db", Path: db, Bytes: 5},
		{Name: "bleve_index", Path: index, Bytes: 3},
		{Name: "missing", Path: filepath.Join(dir, "nope"), Bytes: 0},
		{Name: "unset", Path: "", Bytes: 0},
	}
	if len(entries) != len(want) {
		t.Fatalf("entries = %+v", entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestUsage_empty(t *testing.T) {
	entries, total, err := Usage(nil)
	if err != nil || total != 0 || len(entries) != 0 {
		t.Errorf("Usage(nil) = %v, %d, %v", entries, total, err)
	}
}
