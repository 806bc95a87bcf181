package cardstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

const cardsSchema = `
CREATE TABLE IF NOT EXISTS cards (
	name TEXT PRIMARY KEY,
	content BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cards_updated_at ON cards(updated_at);
`

// SQLiteStore keeps card documents in a single SQLite table.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

// OpenSQLite opens (or creates) the database at dbPath and ensures the schema.
// ":memory:" is accepted for tests and pins the pool to one connection so every
// query sees the same database.
func OpenSQLite(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.New("cardstore: sqlite path is required")
	}
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("cardstore: create database directory: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cardstore: open database: %w", err)
	}

	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(4)
		conn.SetMaxIdleConns(2)
	}
	conn.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=30000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("cardstore: %s: %w", p, err)
		}
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("cardstore: ping database: %w", err)
	}

	if _, err := conn.ExecContext(ctx, cardsSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("cardstore: create cards table: %w", err)
	}

	return &SQLiteStore{conn: conn, path: dbPath}, nil
}

// Name implements Store.
func (s *SQLiteStore) Name() string { return BackendSQLite }

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	var content []byte
	err := s.conn.QueryRowContext(ctx, `SELECT content FROM cards WHERE name = ?`, name).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("cardstore: query %s: %w", name, err)
	}
	return content, nil
}

// Put implements Writer. Existing documents are replaced.
func (s *SQLiteStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	query := `
		INSERT INTO cards (name, content, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			content = excluded.content,
			updated_at = excluded.updated_at
	`
	if _, err := s.conn.ExecContext(ctx, query, name, data, time.Now().Unix()); err != nil {
		return fmt.Errorf("cardstore: save %s: %w", name, err)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cardstore: count cards: %w", err)
	}
	return n, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
