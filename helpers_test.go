package drillkit_test

import (
	"context"
	"errors"
	"sync"

	dk "github.com/ineyio/drillkit"
)

// plainStore is a Store without the Updater capability.
type plainStore struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newPlainStore() *plainStore {
	return &plainStore{data: map[string][]byte{}}
}

func (s *plainStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *plainStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.sets++
	return nil
}

var errBroken = errors.New("disk full")

// brokenStore fails the operations it is told to fail.
type brokenStore struct {
	plainStore
	failGet bool
	failSet bool
}

func (s *brokenStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.failGet {
		return nil, false, errBroken
	}
	return s.plainStore.Get(ctx, key)
}

func (s *brokenStore) Set(ctx context.Context, key string, value []byte) error {
	if s.failSet {
		return errBroken
	}
	return s.plainStore.Set(ctx, key, value)
}

// recordingMeter keeps every event it receives.
type recordingMeter struct {
	mu          sync.Mutex
	increments  []dk.IncrementEvent
	storeErrors []dk.StoreErrorEvent
}

func (m *recordingMeter) OnIncrement(e dk.IncrementEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.increments = append(m.increments, e)
}

func (m *recordingMeter) OnStoreError(e dk.StoreErrorEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeErrors = append(m.storeErrors, e)
}
