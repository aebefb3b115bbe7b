package meter

import (
	"log/slog"

	"github.com/ineyio/drillkit"
)

// LogMeter logs ledger and store events using slog.
type LogMeter struct {
	Logger *slog.Logger
}

var _ drillkit.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, slog.Default() is used.
func NewLogMeter(logger *slog.Logger) *LogMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnIncrement(e drillkit.IncrementEvent) {
	if e.Persisted {
		m.Logger.Info("usage",
			"day", e.Day,
			"principal", e.Principal,
			"resource", string(e.Resource),
			"text_count", e.Usage.TextCount,
			"image_count", e.Usage.ImageCount,
		)
	} else {
		m.Logger.Warn("usage_not_persisted",
			"day", e.Day,
			"principal", e.Principal,
			"resource", string(e.Resource),
			"text_count", e.Usage.TextCount,
			"image_count", e.Usage.ImageCount,
		)
	}
}

func (m *LogMeter) OnStoreError(e drillkit.StoreErrorEvent) {
	m.Logger.Warn("store_error",
		"op", e.Op,
		"key", e.Key,
		"error", e.Err,
	)
}
