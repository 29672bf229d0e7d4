package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the catalog database: discovered remote bindings and the
// operator's own published directories.
type Store struct {
	conn *sql.DB
	Path string
}

// Open opens (creating if needed) the catalog database with WAL mode and
// foreign keys enabled, and ensures the schema exists.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &Store{conn: conn, Path: path}, nil
}

func migrate(conn *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS discovered (
			node_id TEXT NOT NULL,
			binding TEXT NOT NULL,
			name    TEXT,
			cid     TEXT,
			PRIMARY KEY (node_id, binding)
		)`,
		`CREATE TABLE IF NOT EXISTS published (
			path     TEXT PRIMARY KEY,
			key_name TEXT NOT NULL,
			added_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// Conn returns the underlying sql.DB for custom queries
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// DefaultPath returns the per-user catalog location, honoring the
// PEERDEX_DB override.
func DefaultPath() (string, error) {
	if env := os.Getenv("PEERDEX_DB"); env != "" {
		return env, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config dir: %w", err)
	}
	return filepath.Join(dir, "peerdex", "peerdex.db"), nil
}

// nullable converts a *string to its sql representation.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
