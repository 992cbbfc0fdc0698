// Package cache stores compiled dispatch artifacts in SQLite, keyed by the
// content hash of their switch definition.
package cache

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates no artifact is cached under the given hash.
var ErrNotFound = errors.New("cache: artifact not found")

// Store is a SQLite-backed artifact cache.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) a cache database at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS artifacts (
		hash TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		artifact BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating artifacts table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores artifact bytes under the given content hash, replacing any
// previous entry.
func (s *Store) Put(hash [32]byte, name string, artifact []byte) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO artifacts (hash, name, artifact) VALUES (?, ?, ?)",
		hex.EncodeToString(hash[:]), name, artifact,
	)
	if err != nil {
		return fmt.Errorf("storing artifact %s: %w", name, err)
	}
	return nil
}

// Get returns the artifact bytes cached under the given content hash, or
// ErrNotFound.
func (s *Store) Get(hash [32]byte) ([]byte, error) {
	var artifact []byte
	err := s.db.QueryRow(
		"SELECT artifact FROM artifacts WHERE hash = ?",
		hex.EncodeToString(hash[:]),
	).Scan(&artifact)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading artifact: %w", err)
	}
	return artifact, nil
}

// Count returns the number of cached artifacts.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM artifacts").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting artifacts: %w", err)
	}
	return n, nil
}
