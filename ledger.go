package drillkit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultUsageKey is the store key holding the daily usage record.
const DefaultUsageKey = "drillkit:usage:v2"

// DefaultPrincipal is the principal used when no credential is supplied.
// It never collides with a real credential because credentials are trimmed and non-empty.
const DefaultPrincipal = "__default__"

// dayLayout is the ISO 8601 calendar date used for record days.
const dayLayout = "2006-01-02"

// Resource is the kind of generation request being counted.
type Resource string

const (
	ResourceText  Resource = "text"
	ResourceImage Resource = "image"
)

// ParseResource converts a string to a Resource.
func ParseResource(s string) (Resource, error) {
	switch r := Resource(strings.ToLower(strings.TrimSpace(s))); r {
	case ResourceText, ResourceImage:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidResource, s)
	}
}

// Usage holds the daily counts of one principal.
type Usage struct {
	TextCount  int64 `json:"textCount"`
	ImageCount int64 `json:"imageCount"`
}

// Total returns the sum of all counters.
func (u Usage) Total() int64 {
	return u.TextCount + u.ImageCount
}

// Record is the persisted ledger for a single calendar day.
type Record struct {
	Date string           `json:"date"`
	Keys map[string]Usage `json:"keys"`
}

// ResolvePrincipal maps a raw credential to a principal id.
// An empty or blank credential resolves to DefaultPrincipal.
func ResolvePrincipal(credential string) string {
	c := strings.TrimSpace(credential)
	if c == "" {
		return DefaultPrincipal
	}
	return c
}

// Day returns the UTC calendar date of t in ISO 8601 form.
func Day(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// Ledger counts generation requests per principal per UTC day.
// It is advisory: it never blocks or fails the caller.
type Ledger struct {
	store   Store
	key     string
	meter   Meter
	hashIDs bool
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithUsageKey sets the store key of the usage record (default DefaultUsageKey).
func WithUsageKey(key string) LedgerOption {
	return func(l *Ledger) { l.key = key }
}

// WithMeter sets the meter.
func WithMeter(m Meter) LedgerOption {
	return func(l *Ledger) { l.meter = m }
}

// WithPrincipalHashing stores SHA-256 digests of principal ids instead of the raw values,
// so credentials are never persisted in plain form.
func WithPrincipalHashing() LedgerOption {
	return func(l *Ledger) { l.hashIDs = true }
}

// NewLedger creates a Ledger backed by store.
func NewLedger(store Store, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store: store,
		key:   DefaultUsageKey,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.meter == nil {
		l.meter = noopMeter{}
	}
	return l
}

// PrincipalKey returns the key under which principal is recorded.
func (l *Ledger) PrincipalKey(principal string) string {
	if !l.hashIDs {
		return principal
	}
	sum := sha256.Sum256([]byte(principal))
	return hex.EncodeToString(sum[:])
}

// Get returns today's usage for principal. A record from another day reads as zero
// and is left untouched in the store.
func (l *Ledger) Get(ctx context.Context, principal string, now time.Time) Usage {
	rec, ok := l.load(ctx)
	if !ok || rec.Date != Day(now) {
		return Usage{}
	}
	return rec.Keys[l.PrincipalKey(principal)]
}

// Snapshot returns today's record. A stale or missing record yields an empty record for today.
func (l *Ledger) Snapshot(ctx context.Context, now time.Time) Record {
	today := Day(now)
	rec, ok := l.load(ctx)
	if !ok || rec.Date != today {
		return Record{Date: today, Keys: map[string]Usage{}}
	}
	return rec
}

// Increment adds one request of the given resource to principal's usage for the day of now
// and returns the updated counts. A record from a previous day is discarded, not merged.
// Store failures are reported to the meter; the computed counts are returned regardless.
func (l *Ledger) Increment(ctx context.Context, resource Resource, principal string, now time.Time) Usage {
	today := Day(now)
	pk := l.PrincipalKey(principal)

	var usage Usage
	applied := false
	apply := func(old []byte, found bool) ([]byte, error) {
		applied = true
		rec := l.decode(old, found)
		if rec.Date != today {
			rec = Record{Date: today, Keys: map[string]Usage{}}
		}
		u := rec.Keys[pk]
		switch resource {
		case ResourceText:
			u.TextCount++
		case ResourceImage:
			u.ImageCount++
		}
		rec.Keys[pk] = u
		usage = u
		return json.Marshal(rec)
	}

	var err error
	if up, ok := l.store.(Updater); ok {
		err = up.Update(ctx, l.key, apply)
		if err != nil {
			l.reportStoreError("update", err)
			// The store failed before reading; count as if no record existed.
			if !applied {
				_, _ = apply(nil, false)
			}
		}
	} else {
		old, found, gerr := l.store.Get(ctx, l.key)
		if gerr != nil {
			l.reportStoreError("get", gerr)
			old, found = nil, false
		}
		var data []byte
		data, err = apply(old, found)
		if err == nil {
			err = l.store.Set(ctx, l.key, data)
			if err != nil {
				l.reportStoreError("set", err)
			}
		}
	}

	l.meter.OnIncrement(IncrementEvent{
		Day:       today,
		Principal: pk,
		Resource:  resource,
		Usage:     usage,
		Persisted: err == nil,
	})
	return usage
}

func (l *Ledger) load(ctx context.Context) (Record, bool) {
	data, found, err := l.store.Get(ctx, l.key)
	if err != nil {
		l.reportStoreError("get", err)
		return Record{}, false
	}
	if !found {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		l.reportStoreError("decode", err)
		return Record{}, false
	}
	if rec.Keys == nil {
		rec.Keys = map[string]Usage{}
	}
	return rec, true
}

// decode parses a stored record; corrupt data is treated as absent.
func (l *Ledger) decode(data []byte, found bool) Record {
	if !found {
		return Record{}
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		l.reportStoreError("decode", err)
		return Record{}
	}
	if rec.Keys == nil {
		rec.Keys = map[string]Usage{}
	}
	return rec
}

func (l *Ledger) reportStoreError(op string, err error) {
	var se *StoreError
	if !errors.As(err, &se) {
		err = &StoreError{Op: op, Key: l.key, Err: err}
	}
	l.meter.OnStoreError(StoreErrorEvent{Op: op, Key: l.key, Err: err})
}
