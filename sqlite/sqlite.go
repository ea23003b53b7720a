// Package sqlite provides SQLite-backed search indices for cratedoc.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB represents a SQLite database connection.
type DB struct {
	db   *sql.DB
	path string
}

// NewDB creates a new DB instance with the given path.
// Use ":memory:" for an in-memory database.
func NewDB(path string) *DB {
	return &DB{path: path}
}

// Open opens the database connection and creates the schema if needed.
func (db *DB) Open() error {
	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit to one connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Index files are replaced by rename. A rollback journal keeps every
	// committed page in the main file, so no -wal file can outlive a build
	// and be replayed against its replacement.
	if db.path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode = DELETE"); err != nil {
			conn.Close()
			return fmt.Errorf("failed to set journal mode: %w", err)
		}
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.db = conn

	if err := db.createSchema(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// BeginTx starts a transaction.
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return db.db.BeginTx(ctx, nil)
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// ExecContext executes a statement that doesn't return rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// createSchema creates the index tables if they don't exist.
func (db *DB) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			ord INTEGER NOT NULL,
			name TEXT NOT NULL,
			name_lower TEXT NOT NULL,
			path TEXT NOT NULL,
			path_lower TEXT NOT NULL,
			kind TEXT NOT NULL,
			module TEXT NOT NULL DEFAULT '',
			visibility TEXT NOT NULL DEFAULT '',
			signature TEXT NOT NULL DEFAULT '',
			docs TEXT NOT NULL DEFAULT '',
			span_file TEXT,
			span_begin_line INTEGER NOT NULL DEFAULT 0,
			span_begin_col INTEGER NOT NULL DEFAULT 0,
			span_end_line INTEGER NOT NULL DEFAULT 0,
			span_end_col INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS postings (
			token TEXT NOT NULL,
			item TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			field TEXT NOT NULL,
			weight REAL NOT NULL,
			PRIMARY KEY (token, item, field)
		) WITHOUT ROWID;

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_items_ord ON items(ord);
		CREATE INDEX IF NOT EXISTS idx_items_kind ON items(kind);
	`

	_, err := db.db.Exec(schema)
	return err
}
