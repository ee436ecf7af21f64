package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS payloads (
	id      TEXT PRIMARY KEY,
	version TEXT NOT NULL,
	size    INTEGER NOT NULL,
	data    BLOB NOT NULL
)`

// SQLiteSink keeps all payloads of a run in one SQLite database
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens or creates the database at path
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// SQLite has a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Store inserts or replaces a payload. The version column holds VersionID
// of the payload.
func (s *SQLiteSink) Store(ctx context.Context, id string, payload []byte) error {
	clean, err := cleanID(id)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO payloads (id, version, size, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET version = excluded.version, size = excluded.size, data = excluded.data`,
		clean, VersionID(payload), len(payload), payload)
	if err != nil {
		return fmt.Errorf("store %s: %w", id, err)
	}
	return nil
}

// Fetch reads a payload back
func (s *SQLiteSink) Fetch(ctx context.Context, id string) ([]byte, error) {
	clean, err := cleanID(id)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.db.QueryRowContext(ctx, `SELECT data FROM payloads WHERE id = ?`, clean).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", id, err)
	}
	return data, nil
}

// Version returns the stored version id of a payload
func (s *SQLiteSink) Version(ctx context.Context, id string) (string, error) {
	clean, err := cleanID(id)
	if err != nil {
		return "", err
	}
	var version string
	err = s.db.QueryRowContext(ctx, `SELECT version FROM payloads WHERE id = ?`, clean).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return version, err
}

// Close closes the database
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
