//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ineyio/drillkit"
	kvpg "github.com/ineyio/drillkit/kv/postgres"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "postgres://localhost:5432/drillkit_test?sslmode=disable"
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("pgxpool: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		t.Fatalf("postgres not available: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func newTestStore(t *testing.T, pool *pgxpool.Pool) *kvpg.Store {
	t.Helper()
	// Use a unique prefix per test to avoid collisions.
	prefix := fmt.Sprintf("test_%s_", t.Name())
	s := kvpg.New(pool, kvpg.WithTablePrefix(prefix))

	ctx := context.Background()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %skv", prefix))
	})
	return s
}

func TestSetGet(t *testing.T) {
	store := newTestStore(t, newTestPool(t))
	ctx := context.Background()

	_, found, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("expected missing key")
	}

	if err := store.Set(ctx, "k", []byte("one")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "k", []byte("two")); err != nil {
		t.Fatalf("set again: %v", err)
	}
	v, found, err := store.Get(ctx, "k")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if string(v) != "two" {
		t.Fatalf("expected overwritten value, got %q", v)
	}
}

func TestLedgerConcurrentIncrements(t *testing.T) {
	store := newTestStore(t, newTestPool(t))
	ctx := context.Background()
	ledger := drillkit.NewLedger(store)
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ledger.Increment(ctx, drillkit.ResourceImage, "k1", now)
		}()
	}
	wg.Wait()

	got := ledger.Get(ctx, "k1", now)
	if got.ImageCount != 20 {
		t.Fatalf("expected imageCount=20, got %d", got.ImageCount)
	}
}

func TestBookRoundTrip(t *testing.T) {
	store := newTestStore(t, newTestPool(t))
	ctx := context.Background()
	book := drillkit.NewBook(store, drillkit.MustScheduler(drillkit.DefaultSequence))
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	id, _, err := book.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := book.Complete(ctx, id, now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if rem := book.Remaining(ctx, id, now.Add(10*time.Second)); rem != 15 {
		t.Fatalf("expected remaining=15, got %d", rem)
	}
}
