package drillkit_test

import (
	"context"
	"strings"
	"testing"
	"time"

	dk "github.com/ineyio/drillkit"
	"github.com/ineyio/drillkit/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBook(t *testing.T, store dk.Store, opts ...dk.BookOption) *dk.Book {
	t.Helper()
	return dk.NewBook(store, dk.MustScheduler(dk.DefaultSequence), opts...)
}

func TestBook_CreateIsImmediatelyDue(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	b := newTestBook(t, store)

	id, state, err := b.Create(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "card-"))
	assert.Equal(t, dk.ReviewState{IntervalSeconds: 5}, state)
	assert.Equal(t, 0, b.Remaining(ctx, id, t0))

	_, found, err := store.Get(ctx, dk.DefaultReviewPrefix+id)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestBook_CompleteEscalatesAndPersists(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, kv.NewMemory())
	id, _, err := b.Create(ctx)
	require.NoError(t, err)

	state, err := b.Complete(ctx, id, t0)
	require.NoError(t, err)
	assert.Equal(t, 25, state.IntervalSeconds)

	assert.Equal(t, 15, b.Remaining(ctx, id, t0.Add(10*time.Second)))
	assert.Equal(t, 0, b.Remaining(ctx, id, t0.Add(30*time.Second)))

	state, err = b.Complete(ctx, id, t0.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 120, state.IntervalSeconds)

	stored, err := b.Lookup(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, state, stored)
}

func TestBook_Reset(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, kv.NewMemory())
	id, _, err := b.Create(ctx)
	require.NoError(t, err)
	_, err = b.Complete(ctx, id, t0)
	require.NoError(t, err)

	state, err := b.Reset(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, dk.ReviewState{IntervalSeconds: 5}, state)
	assert.Equal(t, 0, b.Remaining(ctx, id, t0))
}

func TestBook_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, dk.DefaultUsageKey, []byte("{}")))
	b := newTestBook(t, store)

	first, _, err := b.Create(ctx)
	require.NoError(t, err)
	second, _, err := b.Create(ctx)
	require.NoError(t, err)

	ids, err := b.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first, second}, ids)

	require.NoError(t, b.Delete(ctx, first))
	ids, err = b.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{second}, ids)
	_, err = b.Lookup(ctx, first)
	assert.ErrorIs(t, err, dk.ErrNotFound)
}

func TestBook_ListUnsupportedStore(t *testing.T) {
	b := newTestBook(t, newPlainStore())
	_, err := b.List(context.Background())
	assert.ErrorIs(t, err, dk.ErrUnsupported)
	assert.ErrorIs(t, b.Delete(context.Background(), "card-1"), dk.ErrUnsupported)
}

func TestBook_LookupMissing(t *testing.T) {
	b := newTestBook(t, kv.NewMemory())
	_, err := b.Lookup(context.Background(), "card-missing")
	assert.ErrorIs(t, err, dk.ErrNotFound)
}

func TestBook_LoadDegradesToFreshState(t *testing.T) {
	ctx := context.Background()
	store := &brokenStore{plainStore: plainStore{data: map[string][]byte{}}, failGet: true}
	m := &recordingMeter{}
	b := newTestBook(t, store, dk.WithBookMeter(m))

	assert.Equal(t, dk.ReviewState{IntervalSeconds: 5}, b.Load(ctx, "card-1"))
	require.Len(t, m.storeErrors, 1)
	assert.Equal(t, "get", m.storeErrors[0].Op)
	assert.ErrorIs(t, m.storeErrors[0].Err, errBroken)
}

func TestBook_LoadReportsDecodeFailure(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, "r:card-1", []byte("{broken")))
	m := &recordingMeter{}
	b := newTestBook(t, store, dk.WithKeyPrefix("r:"), dk.WithBookMeter(m))

	assert.Equal(t, dk.ReviewState{IntervalSeconds: 5}, b.Load(ctx, "card-1"))
	require.Len(t, m.storeErrors, 1)
	assert.Equal(t, "decode", m.storeErrors[0].Op)
	assert.Equal(t, "r:card-1", m.storeErrors[0].Key)
}

func TestBook_LoadNormalizesCorruptInterval(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, "r:card-1", []byte(`{"intervalSeconds":-7,"startedAt":1000}`)))
	b := newTestBook(t, store, dk.WithKeyPrefix("r:"))

	state := b.Load(ctx, "card-1")
	assert.Equal(t, 5, state.IntervalSeconds)
	assert.Equal(t, int64(1000), state.StartedAt)
}

func TestBook_SaveFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	store := &brokenStore{plainStore: plainStore{data: map[string][]byte{}}, failSet: true}
	m := &recordingMeter{}
	b := newTestBook(t, store, dk.WithBookMeter(m))

	state, err := b.Complete(ctx, "card-1", t0)
	assert.ErrorIs(t, err, errBroken)
	assert.True(t, dk.IsStoreFailure(err))
	assert.Equal(t, 25, state.IntervalSeconds)
	assert.Len(t, m.storeErrors, 1)
}
