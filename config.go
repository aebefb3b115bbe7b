package drillkit

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store drivers known to the config.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config is the top-level configuration.
type Config struct {
	Sequence       []int       `yaml:"sequence"`
	DailyLimit     int64       `yaml:"daily_limit"`
	HashPrincipals bool        `yaml:"hash_principals"`
	UsageKey       string      `yaml:"usage_key"`
	ReviewPrefix   string      `yaml:"review_prefix"`
	Store          StoreConfig `yaml:"store"`
}

// StoreConfig selects and configures the durable store.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// Prefix is the Redis key prefix or the PostgreSQL table prefix.
	Prefix string `yaml:"prefix"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	seq := make([]int, len(DefaultSequence))
	copy(seq, DefaultSequence)
	return Config{
		Sequence:     seq,
		DailyLimit:   1500,
		UsageKey:     DefaultUsageKey,
		ReviewPrefix: DefaultReviewPrefix,
		Store:        StoreConfig{Driver: DriverMemory},
	}
}

// LoadConfig reads and parses a YAML config file.
// Environment variables in the format ${VAR} are expanded before parsing.
// Fields absent from the file keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("drillkit: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("drillkit: parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config for required fields and consistency.
func (c Config) Validate() error {
	if _, err := NewScheduler(c.Sequence); err != nil {
		return fmt.Errorf("drillkit: config: sequence: %w", err)
	}
	if c.DailyLimit < 0 {
		return fmt.Errorf("drillkit: config: daily_limit must not be negative")
	}
	if c.UsageKey == "" {
		return fmt.Errorf("drillkit: config: usage_key is required")
	}
	if c.ReviewPrefix == "" {
		return fmt.Errorf("drillkit: config: review_prefix is required")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverRedis, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("drillkit: config: store.dsn is required for driver %q", c.Store.Driver)
		}
	case "":
		return fmt.Errorf("drillkit: config: store.driver is required")
	default:
		return fmt.Errorf("drillkit: config: invalid store.driver %q", c.Store.Driver)
	}

	return nil
}

// UsagePercent returns u's text count as a percentage of the advisory daily limit, capped at 100.
// A zero limit yields 0.
func (c Config) UsagePercent(u Usage) float64 {
	if c.DailyLimit <= 0 {
		return 0
	}
	p := float64(u.TextCount) / float64(c.DailyLimit) * 100
	if p > 100 {
		return 100
	}
	return p
}
