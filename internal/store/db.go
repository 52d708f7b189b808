// Package store provides the embedded workshop datastore.
//
// Every workshop table (projects, tasks, inventory, notes...) is kept in one
// generic SQLite schema:
//   - records:  one JSON body per row, keyed by (table, id)
//   - blobs:    binary field values split out of the JSON body
//   - settings: flat key/value preferences and remote configuration
//
// Rows come back as Row values with binary fields re-attached as *Blob or
// []*Blob, so callers see the same shape they stored.
//
// The database runs in WAL mode so the vault watcher can read while the
// application writes.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned when a row or setting does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps the SQLite connection backing the workshop.
type DB struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// Open creates a new database connection at the specified path.
//
// The parent directory is created if needed. The caller MUST call Close()
// when done. Use InitSchema before the first read or write.
//
// Example:
//
//	db, err := store.Open("workshop.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// busy_timeout and foreign_keys are per-connection, so they go in the DSN
	// where every pooled connection picks them up.
	connStr := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn: conn,
		path: path,
		now:  time.Now,
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the schema if it doesn't exist. Safe to call repeatedly.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		tbl TEXT NOT NULL,
		id INTEGER NOT NULL,
		body TEXT NOT NULL,  -- JSON object, binary fields removed
		updated_at TEXT NOT NULL,
		PRIMARY KEY (tbl, id)
	);

	CREATE TABLE IF NOT EXISTS blobs (
		tbl TEXT NOT NULL,
		row_id INTEGER NOT NULL,
		field TEXT NOT NULL,
		idx INTEGER NOT NULL,  -- -1 for a single blob, else array position
		mime TEXT NOT NULL DEFAULT '',
		data BLOB NOT NULL,
		PRIMARY KEY (tbl, row_id, field, idx),
		FOREIGN KEY (tbl, row_id) REFERENCES records(tbl, id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_project
		ON records(tbl, json_extract(body, '$.project_id'));
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
