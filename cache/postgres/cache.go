// Package postgres implements the cache store on PostgreSQL, for sharing one
// recorded session cache between hosts.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"

	_ "github.com/lib/pq"

	"github.com/raember/spoofbot/cache"
)

var (
	// ErrPingFailed is returned if the initial ping to the database returns an error
	ErrPingFailed = errors.New("ping returned error")
)

var (
	//go:embed create_table.sql
	queryCreateTable string
	//go:embed fetch_entry.sql
	queryFetchEntry string
	//go:embed upsert_entry.sql
	queryUpsertEntry string
	//go:embed delete_entry.sql
	queryDeleteEntry string
)

// Store implements cache.Store backed by a PostgreSQL table of payloads
// keyed by location.
type Store struct {
	db *sql.DB
}

func (s *Store) Lookup(ctx context.Context, loc cache.Location) ([]byte, error) {
	stmt, err := s.db.PrepareContext(ctx, queryFetchEntry)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var payload []byte
	err = stmt.QueryRowContext(ctx, string(loc)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *Store) Store(ctx context.Context, loc cache.Location, payload []byte) error {
	stmt, err := s.db.PrepareContext(ctx, queryUpsertEntry)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, string(loc), payload)
	return err
}

func (s *Store) Delete(ctx context.Context, loc cache.Location) error {
	stmt, err := s.db.PrepareContext(ctx, queryDeleteEntry)
	if err != nil {
		return err
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, string(loc))
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

func createTable(ctx context.Context, db *sql.DB) error {
	stmt, err := db.PrepareContext(ctx, queryCreateTable)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx)
	return err
}

// New verifies the database connection and creates the entries table if it
// does not exist yet.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, cache.ValidationError{Reason: "nil database handle"}
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(ErrPingFailed, err)
	}
	if err := createTable(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}
