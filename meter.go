package drillkit

// Meter observes ledger and store events for monitoring/logging.
type Meter interface {
	// OnIncrement is called after a usage counter was incremented.
	OnIncrement(event IncrementEvent)

	// OnStoreError is called when a store read or write failed and was degraded.
	OnStoreError(event StoreErrorEvent)
}

// IncrementEvent describes a recorded generation request.
type IncrementEvent struct {
	Day       string
	Principal string // as stored; hashed when principal hashing is enabled
	Resource  Resource
	Usage     Usage
	Persisted bool
}

// StoreErrorEvent describes a store failure that was absorbed.
type StoreErrorEvent struct {
	Op  string
	Key string
	Err error
}

type noopMeter struct{}

func (noopMeter) OnIncrement(IncrementEvent)   {}
func (noopMeter) OnStoreError(StoreErrorEvent) {}
