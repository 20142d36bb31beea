// Package store provides SQLite-backed persistence for gesture templates: a
// thin Store wrapping *sql.DB, opened with foreign keys enabled and
// migrated on construction.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed persistence layer for gesture templates.
type Store struct {
	db   *sql.DB
	path string
}

// New opens dbPath, enables foreign key enforcement, and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection, for callers that need direct
// access (migrations tooling, admin queries).
func (s *Store) DB() *sql.DB {
	return s.db
}
