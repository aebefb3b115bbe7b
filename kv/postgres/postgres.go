// Package postgres provides a PostgreSQL-backed Store for drillkit.
//
// Values live in a single key/value table. Update serializes writers of the
// same key with a transaction-scoped advisory lock, so it is safe for
// multi-instance deployments and durable across restarts.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ineyio/drillkit"
)

// Store is a PostgreSQL-backed Store.
type Store struct {
	pool        *pgxpool.Pool
	tablePrefix string
}

var (
	_ drillkit.Store   = (*Store)(nil)
	_ drillkit.Updater = (*Store)(nil)
	_ drillkit.Lister  = (*Store)(nil)
	_ drillkit.Deleter = (*Store)(nil)
)

// Option configures Store.
type Option func(*Store)

// WithTablePrefix sets the table name prefix (default "drillkit_").
func WithTablePrefix(prefix string) Option {
	return func(s *Store) { s.tablePrefix = prefix }
}

// New creates a new PostgreSQL-backed Store.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:        pool,
		tablePrefix: "drillkit_",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to dsn, pings the server and ensures the schema exists.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("drillkit/postgres: pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("drillkit/postgres: ping: %w", err)
	}
	s := New(pool, opts...)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) table() string { return s.tablePrefix + "kv" }

// EnsureSchema creates the required table if it doesn't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`, s.table())
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("drillkit/postgres: ensure schema: %w", err)
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) get(ctx context.Context, q querier, key string) ([]byte, bool, error) {
	var v []byte
	err := q.QueryRow(ctx,
		fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, s.table()),
		key,
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *Store) upsertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, s.table())
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, found, err := s.get(ctx, s.pool, key)
	if err != nil {
		return nil, false, fmt.Errorf("drillkit/postgres: get: %w", err)
	}
	return v, found, nil
}

// Set stores value under key (upsert).
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, s.upsertSQL(), key, value); err != nil {
		return fmt.Errorf("drillkit/postgres: set: %w", err)
	}
	return nil
}

// Update runs fn in a transaction holding an advisory lock on key.
func (s *Store) Update(ctx context.Context, key string, fn func(old []byte, found bool) ([]byte, error)) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("drillkit/postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// The row may not exist yet, so lock the key itself rather than the row.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, s.table()+":"+key); err != nil {
		return fmt.Errorf("drillkit/postgres: lock: %w", err)
	}

	old, found, err := s.get(ctx, tx, key)
	if err != nil {
		return fmt.Errorf("drillkit/postgres: update read: %w", err)
	}
	next, err := fn(old, found)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, s.upsertSQL(), key, next); err != nil {
		return fmt.Errorf("drillkit/postgres: update write: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("drillkit/postgres: commit: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table())
	if _, err := s.pool.Exec(ctx, q, key); err != nil {
		return fmt.Errorf("drillkit/postgres: delete: %w", err)
	}
	return nil
}

// Keys returns the sorted keys that start with prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	q := fmt.Sprintf(`SELECT key FROM %s WHERE starts_with(key, $1) ORDER BY key COLLATE "C"`, s.table())
	rows, err := s.pool.Query(ctx, q, prefix)
	if err != nil {
		return nil, fmt.Errorf("drillkit/postgres: keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("drillkit/postgres: keys: %w", err)
	}
	return keys, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
