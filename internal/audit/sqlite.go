package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/elastipass/internal/models"
)

// SQLiteSink stores records in a local search_logs table.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL,
		q TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT '',
		field TEXT NOT NULL DEFAULT '',
		query_limit INTEGER NOT NULL DEFAULT 0,
		took INTEGER NOT NULL DEFAULT 0,
		timed_out BOOLEAN NOT NULL DEFAULT 0,
		hits INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_search_logs_timestamp ON search_logs(timestamp);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Append(ctx context.Context, rec *models.AuditRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_logs (timestamp, q, kind, field, query_limit, took, timed_out, hits)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.UTC(), rec.Query, rec.Kind, rec.Field, rec.Limit, rec.Took, rec.TimedOut, rec.Hits,
	)
	return err
}

// Recent returns up to limit records, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]*models.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, q, kind, field, query_limit, took, timed_out, hits
		 FROM search_logs ORDER BY timestamp DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.AuditRecord
	for rows.Next() {
		var rec models.AuditRecord
		var ts time.Time
		if err := rows.Scan(&ts, &rec.Query, &rec.Kind, &rec.Field, &rec.Limit, &rec.Took, &rec.TimedOut, &rec.Hits); err != nil {
			return nil, err
		}
		rec.Timestamp = ts.UTC()
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Count returns the number of stored records.
func (s *SQLiteSink) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_logs`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
