package kv

import (
	"context"
	"fmt"

	"github.com/ineyio/drillkit"
	"github.com/ineyio/drillkit/kv/postgres"
	"github.com/ineyio/drillkit/kv/redis"
)

// Closer is a Store that holds resources.
type Closer interface {
	drillkit.Store
	Close() error
}

// Open creates the store selected by cfg.
func Open(ctx context.Context, cfg drillkit.StoreConfig) (Closer, error) {
	switch cfg.Driver {
	case drillkit.DriverMemory, "":
		return NewMemory(), nil
	case drillkit.DriverSQLite:
		s, err := NewSQLite(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case drillkit.DriverRedis:
		var opts []redis.Option
		if cfg.Prefix != "" {
			opts = append(opts, redis.WithKeyPrefix(cfg.Prefix))
		}
		s, err := redis.Open(ctx, cfg.DSN, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case drillkit.DriverPostgres:
		var opts []postgres.Option
		if cfg.Prefix != "" {
			opts = append(opts, postgres.WithTablePrefix(cfg.Prefix))
		}
		s, err := postgres.Open(ctx, cfg.DSN, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("drillkit: unknown store driver %q", cfg.Driver)
	}
}
