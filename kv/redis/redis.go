// Package redis provides a Redis-backed Store for drillkit.
//
// Values are plain Redis strings. Update uses WATCH/MULTI optimistic
// transactions, which makes the ledger's read-modify-write safe for
// multi-instance deployments.
package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ineyio/drillkit"
)

const defaultMaxRetries = 16

// Store is a Redis-backed Store.
type Store struct {
	client     goredis.UniversalClient
	keyPrefix  string
	maxRetries int
}

var (
	_ drillkit.Store   = (*Store)(nil)
	_ drillkit.Updater = (*Store)(nil)
	_ drillkit.Lister  = (*Store)(nil)
	_ drillkit.Deleter = (*Store)(nil)
)

// ErrContended is returned by Update when every optimistic attempt lost a race.
var ErrContended = errors.New("drillkit/redis: update contended")

// Option configures Store.
type Option func(*Store)

// WithKeyPrefix sets the Redis key prefix (default "drillkit:").
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// WithMaxRetries sets how many times Update retries after a WATCH conflict (default 16).
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// New creates a new Redis-backed Store.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:     client,
		keyPrefix:  "drillkit:",
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the Redis server at url (redis://host:port/db) and pings it.
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	o, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("drillkit/redis: parse url: %w", err)
	}
	client := goredis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("drillkit/redis: ping: %w", err)
	}
	return New(client, opts...), nil
}

func (s *Store) key(k string) string {
	return s.keyPrefix + k
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("drillkit/redis: get: %w", err)
	}
	return v, true, nil
}

// Set stores value under key without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("drillkit/redis: set: %w", err)
	}
	return nil
}

// Update runs fn in a WATCH transaction and retries when the key changed concurrently.
func (s *Store) Update(ctx context.Context, key string, fn func(old []byte, found bool) ([]byte, error)) error {
	k := s.key(key)

	txf := func(tx *goredis.Tx) error {
		old, err := tx.Get(ctx, k).Bytes()
		found := true
		if errors.Is(err, goredis.Nil) {
			found, err = false, nil
		}
		if err != nil {
			return fmt.Errorf("drillkit/redis: update read: %w", err)
		}

		next, err := fn(old, found)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, k, next, 0)
			return nil
		})
		return err
	}

	for range s.maxRetries {
		err := s.client.Watch(ctx, txf, k)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContended
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("drillkit/redis: delete: %w", err)
	}
	return nil
}

// Keys returns the sorted keys that start with prefix, without the store's key prefix.
// On a cluster client only the node serving the SCAN is enumerated.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	match := globEscape(s.key(prefix)) + "*"
	var keys []string
	iter := s.client.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("drillkit/redis: keys: %w", err)
	}
	slices.Sort(keys)
	// SCAN may return a key more than once.
	return slices.Compact(keys), nil
}

func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
