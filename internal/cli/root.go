// Package cli implements the drillkit CLI commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ineyio/drillkit"
	"github.com/ineyio/drillkit/kv"
	"github.com/ineyio/drillkit/meter"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DBPath     string
	Driver     string
	Now        string
	Format     string // "json" | "text"
	Verbose    bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"json", "text"}

// NewRootCommand creates the root command for the drillkit CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "drillkit",
		Short:         "Review timers and daily usage counters",
		Long:          "Escalating review timers per item and an advisory per-day usage ledger, backed by a durable key-value store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Config file (default: $DRILLKIT_CONFIG)")
	cmd.PersistentFlags().StringVarP(&opts.DBPath, "db", "d", "", "Store DSN; overrides the config (default: $DRILLKIT_DB or ~/.drillkit/drillkit.db)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "Store driver: memory, sqlite, redis or postgres")
	cmd.PersistentFlags().StringVar(&opts.Now, "now", "", "Current time as RFC 3339 (default: wall clock)")
	cmd.PersistentFlags().StringVarP(&opts.Format, "format", "f", "json", "Output format: json or text")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log store and usage events to stderr")

	cmd.AddCommand(NewReviewCommand(opts))
	cmd.AddCommand(NewUsageCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig resolves the config file, then applies the driver and DSN overrides.
func (o *RootOptions) loadConfig() (drillkit.Config, error) {
	path := o.ConfigPath
	if path == "" {
		path = os.Getenv("DRILLKIT_CONFIG")
	}

	cfg := drillkit.DefaultConfig()
	cfg.Store = drillkit.StoreConfig{Driver: drillkit.DriverSQLite, DSN: defaultDBPath()}
	if path != "" {
		var err error
		cfg, err = drillkit.LoadConfig(path)
		if err != nil {
			return drillkit.Config{}, err
		}
	}

	if o.Driver != "" {
		cfg.Store.Driver = o.Driver
	}
	if o.DBPath != "" {
		cfg.Store.DSN = o.DBPath
	} else if env := os.Getenv("DRILLKIT_DB"); env != "" && path == "" {
		cfg.Store.DSN = env
	}

	if err := cfg.Validate(); err != nil {
		return drillkit.Config{}, err
	}
	return cfg, nil
}

func defaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".drillkit", "drillkit.db")
}

func (o *RootOptions) now() (time.Time, error) {
	if o.Now == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, o.Now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now %q: %w", o.Now, err)
	}
	return t, nil
}

func (o *RootOptions) meter(cmd *cobra.Command) drillkit.Meter {
	if !o.Verbose {
		return &meter.NoopMeter{}
	}
	h := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug})
	return meter.NewLogMeter(slog.New(h))
}

// env bundles what every command needs.
type env struct {
	cfg   drillkit.Config
	store kv.Closer
	meter drillkit.Meter
	now   time.Time
}

func (o *RootOptions) open(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	now, err := o.now()
	if err != nil {
		return nil, err
	}
	store, err := kv.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &env{cfg: cfg, store: store, meter: o.meter(cmd), now: now}, nil
}

func (e *env) book() (*drillkit.Book, error) {
	sched, err := drillkit.NewScheduler(e.cfg.Sequence)
	if err != nil {
		return nil, err
	}
	return drillkit.NewBook(e.store, sched,
		drillkit.WithKeyPrefix(e.cfg.ReviewPrefix),
		drillkit.WithBookMeter(e.meter),
	), nil
}

func (e *env) ledger() *drillkit.Ledger {
	opts := []drillkit.LedgerOption{
		drillkit.WithUsageKey(e.cfg.UsageKey),
		drillkit.WithMeter(e.meter),
	}
	if e.cfg.HashPrincipals {
		opts = append(opts, drillkit.WithPrincipalHashing())
	}
	return drillkit.NewLedger(e.store, opts...)
}

func (e *env) Close() error {
	return e.store.Close()
}
