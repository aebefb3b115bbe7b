package drillkit_test

import (
	"os"
	"path/filepath"
	"testing"

	dk "github.com/ineyio/drillkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drillkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("DRILLKIT_TEST_DIR", "/var/lib/drillkit")
	path := writeConfig(t, `
sequence: [10, 60, 600]
hash_principals: true
store:
  driver: sqlite
  dsn: ${DRILLKIT_TEST_DIR}/drillkit.db
`)

	cfg, err := dk.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 60, 600}, cfg.Sequence)
	assert.True(t, cfg.HashPrincipals)
	assert.Equal(t, "/var/lib/drillkit/drillkit.db", cfg.Store.DSN)
	assert.Equal(t, int64(1500), cfg.DailyLimit)
	assert.Equal(t, dk.DefaultUsageKey, cfg.UsageKey)
	assert.Equal(t, dk.DefaultReviewPrefix, cfg.ReviewPrefix)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := dk.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = dk.LoadConfig(writeConfig(t, "sequence: [5, 5]\n"))
	assert.ErrorIs(t, err, dk.ErrInvalidSequence)

	_, err = dk.LoadConfig(writeConfig(t, "sequence: {\n"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, dk.DefaultConfig().Validate())

	cases := map[string]func(*dk.Config){
		"negative limit": func(c *dk.Config) { c.DailyLimit = -1 },
		"no usage key":   func(c *dk.Config) { c.UsageKey = "" },
		"no prefix":      func(c *dk.Config) { c.ReviewPrefix = "" },
		"no driver":      func(c *dk.Config) { c.Store.Driver = "" },
		"unknown driver": func(c *dk.Config) { c.Store.Driver = "etcd" },
		"sqlite w/o dsn": func(c *dk.Config) { c.Store.Driver = dk.DriverSQLite },
		"redis w/o dsn":  func(c *dk.Config) { c.Store.Driver = dk.DriverRedis },
		"empty sequence": func(c *dk.Config) { c.Sequence = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := dk.DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestUsagePercent(t *testing.T) {
	cfg := dk.DefaultConfig()
	assert.InDelta(t, 10.0, cfg.UsagePercent(dk.Usage{TextCount: 150, ImageCount: 900}), 0.001)
	assert.Equal(t, 100.0, cfg.UsagePercent(dk.Usage{TextCount: 5000}))

	cfg.DailyLimit = 0
	assert.Equal(t, 0.0, cfg.UsagePercent(dk.Usage{TextCount: 5}))
}
