package drillkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultReviewPrefix is the store key prefix for persisted review states.
const DefaultReviewPrefix = "drillkit:review:"

// Book persists review states per item and drives a Scheduler over them.
type Book struct {
	store  Store
	sched  *Scheduler
	prefix string
	meter  Meter
}

// BookOption configures a Book.
type BookOption func(*Book)

// WithKeyPrefix sets the store key prefix (default DefaultReviewPrefix).
func WithKeyPrefix(prefix string) BookOption {
	return func(b *Book) { b.prefix = prefix }
}

// WithBookMeter sets the meter that receives absorbed store failures.
func WithBookMeter(m Meter) BookOption {
	return func(b *Book) { b.meter = m }
}

// NewBook creates a Book over store using sched.
func NewBook(store Store, sched *Scheduler, opts ...BookOption) *Book {
	b := &Book{
		store:  store,
		sched:  sched,
		prefix: DefaultReviewPrefix,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.meter == nil {
		b.meter = noopMeter{}
	}
	return b
}

// Scheduler returns the scheduler used by the book.
func (b *Book) Scheduler() *Scheduler {
	return b.sched
}

func (b *Book) key(id string) string {
	return b.prefix + id
}

// Create registers a new item that is immediately due and returns its id.
func (b *Book) Create(ctx context.Context) (string, ReviewState, error) {
	id := "card-" + uuid.New().String()
	state := b.sched.New()
	if err := b.Save(ctx, id, state); err != nil {
		return "", ReviewState{}, err
	}
	return id, state, nil
}

// Lookup returns the stored state of id, or ErrNotFound.
func (b *Book) Lookup(ctx context.Context, id string) (ReviewState, error) {
	data, found, err := b.store.Get(ctx, b.key(id))
	if err != nil {
		return ReviewState{}, &StoreError{Op: "get", Key: b.key(id), Err: err}
	}
	if !found {
		return ReviewState{}, fmt.Errorf("%w: review %q", ErrNotFound, id)
	}
	var state ReviewState
	if err := json.Unmarshal(data, &state); err != nil {
		return ReviewState{}, &StoreError{Op: "decode", Key: b.key(id), Err: err}
	}
	return b.sched.Normalize(state), nil
}

// Load returns the state of id. Missing or unreadable state degrades to a fresh,
// immediately due state.
func (b *Book) Load(ctx context.Context, id string) ReviewState {
	state, err := b.Lookup(ctx, id)
	if err != nil {
		var se *StoreError
		if errors.As(err, &se) {
			b.meter.OnStoreError(StoreErrorEvent{Op: se.Op, Key: se.Key, Err: err})
		}
		return b.sched.New()
	}
	return state
}

// Save persists state for id.
func (b *Book) Save(ctx context.Context, id string, state ReviewState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("drillkit: encode review %q: %w", id, err)
	}
	if err := b.store.Set(ctx, b.key(id), data); err != nil {
		serr := &StoreError{Op: "set", Key: b.key(id), Err: err}
		b.meter.OnStoreError(StoreErrorEvent{Op: "set", Key: b.key(id), Err: serr})
		return serr
	}
	return nil
}

// Remaining returns the seconds until id is due.
func (b *Book) Remaining(ctx context.Context, id string, now time.Time) int {
	return b.sched.Remaining(b.Load(ctx, id), now)
}

// Complete records a finished review of id at now and returns the advanced state.
// The advanced state is returned even when saving it fails.
func (b *Book) Complete(ctx context.Context, id string, now time.Time) (ReviewState, error) {
	state := b.sched.Advance(b.Load(ctx, id), now)
	return state, b.Save(ctx, id, state)
}

// Reset returns id to the first step.
func (b *Book) Reset(ctx context.Context, id string) (ReviewState, error) {
	state := b.sched.Reset(b.Load(ctx, id))
	return state, b.Save(ctx, id, state)
}

// List returns the ids of all stored items in ascending order.
// It fails with ErrUnsupported when the store cannot enumerate keys.
func (b *Book) List(ctx context.Context) ([]string, error) {
	l, ok := b.store.(Lister)
	if !ok {
		return nil, ErrUnsupported
	}
	keys, err := l.Keys(ctx, b.prefix)
	if err != nil {
		return nil, &StoreError{Op: "keys", Key: b.prefix, Err: err}
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, b.prefix))
	}
	return ids, nil
}

// Delete removes id from the book.
func (b *Book) Delete(ctx context.Context, id string) error {
	d, ok := b.store.(Deleter)
	if !ok {
		return ErrUnsupported
	}
	if err := d.Delete(ctx, b.key(id)); err != nil {
		return &StoreError{Op: "delete", Key: b.key(id), Err: err}
	}
	return nil
}
