package meter

import "github.com/ineyio/drillkit"

// NoopMeter is a meter that does nothing.
type NoopMeter struct{}

var _ drillkit.Meter = (*NoopMeter)(nil)

func (m *NoopMeter) OnIncrement(drillkit.IncrementEvent)   {}
func (m *NoopMeter) OnStoreError(drillkit.StoreErrorEvent) {}
