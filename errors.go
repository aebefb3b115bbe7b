package drillkit

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrInvalidSequence = errors.New("drillkit: invalid interval sequence")
	ErrInvalidResource = errors.New("drillkit: invalid resource type")
	ErrStoreClosed     = errors.New("drillkit: store closed")
	ErrNotFound        = errors.New("drillkit: not found")
	ErrUnsupported     = errors.New("drillkit: operation not supported by store")
)

// StoreError wraps a failure of the key-value store with the operation and key.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("drillkit: store %s key=%s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreFailure returns true if err originated in a Store.
func IsStoreFailure(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
