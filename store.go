package drillkit

import "context"

// Store is the durable key-value store shared by the ledger and the review book.
type Store interface {
	// Get returns the value stored under key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
}

// Updater is implemented by stores that can run a read-modify-write atomically.
// fn receives the current value and returns the value to store. If fn returns
// an error nothing is written and the error is returned from Update.
type Updater interface {
	Update(ctx context.Context, key string, fn func(old []byte, found bool) ([]byte, error)) error
}

// Lister is implemented by stores that can enumerate keys by prefix.
// Keys are returned in ascending order.
type Lister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Deleter is implemented by stores that can remove a key. Deleting an absent key is not an error.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}
