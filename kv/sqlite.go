package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ineyio/drillkit"
)

// SQLite is a Store backed by a single SQLite table.
type SQLite struct {
	db *sql.DB

	mu     sync.Mutex
	closed bool
}

var (
	_ drillkit.Store   = (*SQLite)(nil)
	_ drillkit.Updater = (*SQLite)(nil)
	_ drillkit.Lister  = (*SQLite)(nil)
	_ drillkit.Deleter = (*SQLite)(nil)
)

// NewSQLite opens or creates a SQLite database at dbPath.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("drillkit/sqlite: create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("drillkit/sqlite: open db: %w", err)
	}
	// One writer; keeps Update transactions from failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("drillkit/sqlite: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`)
	return err
}

func (s *SQLite) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return drillkit.ErrStoreClosed
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func get(ctx context.Context, q queryer, key string) ([]byte, bool, error) {
	var v []byte
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func set(ctx context.Context, q queryer, key string, value []byte) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli(),
	)
	return err
}

// Get returns the value stored under key.
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.check(); err != nil {
		return nil, false, err
	}
	v, found, err := get(ctx, s.db, key)
	if err != nil {
		return nil, false, fmt.Errorf("drillkit/sqlite: get: %w", err)
	}
	return v, found, nil
}

// Set stores value under key.
func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := set(ctx, s.db, key, value); err != nil {
		return fmt.Errorf("drillkit/sqlite: set: %w", err)
	}
	return nil
}

// Update runs fn inside a transaction.
func (s *SQLite) Update(ctx context.Context, key string, fn func(old []byte, found bool) ([]byte, error)) error {
	if err := s.check(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("drillkit/sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	old, found, err := get(ctx, tx, key)
	if err != nil {
		return fmt.Errorf("drillkit/sqlite: update read: %w", err)
	}
	next, err := fn(old, found)
	if err != nil {
		return err
	}
	if err := set(ctx, tx, key, next); err != nil {
		return fmt.Errorf("drillkit/sqlite: update write: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drillkit/sqlite: commit: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	if err := s.check(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("drillkit/sqlite: delete: %w", err)
	}
	return nil
}

// Keys returns the sorted keys that start with prefix.
func (s *SQLite) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	q, args := `SELECT key FROM kv WHERE key >= ?`, []any{prefix}
	if upper, ok := prefixEnd(prefix); ok {
		q += ` AND key < ?`
		args = append(args, upper)
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY key`, args...)
	if err != nil {
		return nil, fmt.Errorf("drillkit/sqlite: keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("drillkit/sqlite: keys: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// prefixEnd returns the smallest string greater than every string starting
// with prefix under byte-wise comparison. ok is false when there is none.
func prefixEnd(prefix string) (string, bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}
