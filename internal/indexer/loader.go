// Package indexer loads account dumps (JSON arrays or JSON Lines) into the embedded index.
package indexer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/elastipass/internal/engine"
	"github.com/hyperjump/elastipass/internal/fileid"
)

const (
	defaultBatchSize = 1000
	maxLineBytes     = 4 << 20
)

// DocumentIndexer stores account documents.
type DocumentIndexer interface {
	IndexDocuments(ctx context.Context, docs []engine.Document) error
}

// Loader reads dump files and feeds them to a DocumentIndexer in batches.
type Loader struct {
	index      DocumentIndexer
	extensions []string
	batchSize  int
	logger     *zap.Logger

	mu   sync.Mutex
	seen map[string]fileState
}

type fileState struct {
	mtime time.Time
	size  int64
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets a logger for debug output (file loaded, file skipped, etc.).
func WithLogger(l *zap.Logger) LoaderOption {
	return func(ld *Loader) { ld.logger = l }
}

// WithBatchSize sets how many documents are sent to the index at once.
func WithBatchSize(n int) LoaderOption {
	return func(ld *Loader) {
		if n > 0 {
			ld.batchSize = n
		}
	}
}

// NewLoader creates a loader. extensions filters files in LoadDirectory and LoadFile
// (empty = all files).
func NewLoader(index DocumentIndexer, extensions []string, opts ...LoaderOption) *Loader {
	ld := &Loader{
		index:      index,
		extensions: extensions,
		batchSize:  defaultBatchSize,
		logger:     zap.NewNop(),
		seen:       make(map[string]fileState),
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// LoadFile loads one dump file and returns the number of accounts indexed. Files already
// loaded with the same mtime and size are skipped.
func (ld *Loader) LoadFile(ctx context.Context, path string) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	if !extensionAllowed(filepath.Ext(absPath), ld.extensions) {
		return 0, fmt.Errorf("extension %q not in allowed list", filepath.Ext(absPath))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("not a regular file: %s", absPath)
	}
	state := fileState{mtime: info.ModTime(), size: info.Size()}
	ld.mu.Lock()
	prev, ok := ld.seen[absPath]
	ld.mu.Unlock()
	if ok && prev == state {
		ld.logger.Debug("loader skipping unchanged file", zap.String("path", absPath))
		return 0, nil
	}

	f, err := os.Open(absPath)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	n, err := ld.load(ctx, f, func(i int) string { return fileid.RecordID(absPath, i) })
	if err != nil {
		return n, fmt.Errorf("%s: %w", absPath, err)
	}
	ld.mu.Lock()
	ld.seen[absPath] = state
	ld.mu.Unlock()
	ld.logger.Debug("loader file loaded", zap.String("path", absPath), zap.Int("accounts", n))
	return n, nil
}

// LoadReader loads a dump from r. Records without an id get a random one.
func (ld *Loader) LoadReader(ctx context.Context, r io.Reader) (int, error) {
	return ld.load(ctx, r, func(int) string { return uuid.New().String() })
}

// LoadDirectory walks dir recursively and loads every dump file. Returns the number of
// accounts indexed and the first error encountered, if any.
func (ld *Loader) LoadDirectory(ctx context.Context, dir string) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	total := 0
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !extensionAllowed(filepath.Ext(path), ld.extensions) {
			return nil
		}
		n, err := ld.LoadFile(ctx, path)
		total += n
		return err
	})
	return total, err
}

// load detects the format from the first non-space byte: '[' is a JSON array, anything
// else is one JSON object per line.
func (ld *Loader) load(ctx context.Context, r io.Reader, fallbackID func(int) string) (int, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	batch := make([]engine.Document, 0, ld.batchSize)
	total := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ld.index.IndexDocuments(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}
	add := func(n int, fields map[string]any) error {
		batch = append(batch, toDocument(fields, fallbackID(n)))
		if len(batch) >= ld.batchSize {
			return flush()
		}
		return nil
	}

	if first == '[' {
		err = readArray(br, add)
	} else {
		err = readLines(br, add)
	}
	if err != nil {
		return total, err
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

func readArray(r io.Reader, add func(int, map[string]any) error) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read array: %w", err)
	}
	for n := 1; dec.More(); n++ {
		var fields map[string]any
		if err := dec.Decode(&fields); err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
		if err := add(n, fields); err != nil {
			return err
		}
	}
	return nil
}

func readLines(r io.Reader, add func(int, map[string]any) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var fields map[string]any
		if err := dec.Decode(&fields); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		if err := add(n, fields); err != nil {
			return err
		}
	}
	return sc.Err()
}

// toDocument takes the id from "id" or "_id" when present; the id key is kept out of the
// stored fields since results expose it separately.
func toDocument(fields map[string]any, fallback string) engine.Document {
	id := fallback
	for _, key := range []string{"id", "_id"} {
		v, ok := fields[key]
		if !ok {
			continue
		}
		if s := idString(v); s != "" {
			id = s
			delete(fields, key)
			break
		}
	}
	if src, ok := fields["_source"].(map[string]any); ok {
		fields = src
	}
	return engine.Document{ID: id, Fields: fields}
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	default:
		return ""
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		return b, br.UnreadByte()
	}
}

func extensionAllowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
