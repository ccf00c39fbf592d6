// Package sqlite implements the cache store on a single-file SQLite
// database, a compact alternative to the filesystem tree when a session
// touches many URLs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/glebarez/go-sqlite"

	"github.com/raember/spoofbot/cache"
)

// Store implements cache.Store backed by a SQLite database file.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and prepares the entries table.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, cache.ValidationError{Reason: "empty database path"}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS entries (location TEXT PRIMARY KEY, payload BLOB NOT NULL)"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Lookup(ctx context.Context, loc cache.Location) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM entries WHERE location = ?", string(loc)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *Store) Store(ctx context.Context, loc cache.Location, payload []byte) error {
	_, err := s.db.ExecContext(ctx, "INSERT OR REPLACE INTO entries (location, payload) VALUES (?, ?)", string(loc), payload)
	return err
}

func (s *Store) Delete(ctx context.Context, loc cache.Location) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE location = ?", string(loc))
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return cache.ErrEntryNotFound
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
