package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ineyio/drillkit"
)

type usageView struct {
	Day        string  `json:"day"`
	Principal  string  `json:"principal"`
	TextCount  int64   `json:"textCount"`
	ImageCount int64   `json:"imageCount"`
	DailyLimit int64   `json:"dailyLimit"`
	Percent    float64 `json:"percent"`
}

// NewUsageCommand creates the usage command group.
func NewUsageCommand(opts *RootOptions) *cobra.Command {
	var credential string

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Inspect and record daily generation usage",
	}
	cmd.PersistentFlags().StringVarP(&credential, "key", "k", "", "API credential the usage is attributed to (default: anonymous)")

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show today's usage for a credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsage(opts, cmd, credential, func(l *drillkit.Ledger, e *env, principal string) drillkit.Usage {
				return l.Get(cmd.Context(), principal, e.now)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "incr <text|image>",
		Short:     "Record one generation request",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(drillkit.ResourceText), string(drillkit.ResourceImage)},
		RunE: func(cmd *cobra.Command, args []string) error {
			resource, err := drillkit.ParseResource(args[0])
			if err != nil {
				return err
			}
			return runUsage(opts, cmd, credential, func(l *drillkit.Ledger, e *env, principal string) drillkit.Usage {
				return l.Increment(cmd.Context(), resource, principal, e.now)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show today's usage for every principal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsageList(opts, cmd)
		},
	})

	return cmd
}

func runUsage(opts *RootOptions, cmd *cobra.Command, credential string, op func(*drillkit.Ledger, *env, string) drillkit.Usage) error {
	e, err := opts.open(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ledger := e.ledger()
	principal := drillkit.ResolvePrincipal(credential)
	u := op(ledger, e, principal)

	view := usageView{
		Day:        drillkit.Day(e.now),
		Principal:  ledger.PrincipalKey(principal),
		TextCount:  u.TextCount,
		ImageCount: u.ImageCount,
		DailyLimit: e.cfg.DailyLimit,
		Percent:    e.cfg.UsagePercent(u),
	}

	if opts.Format == "text" {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Used today: %d requests (text %d, image %d)  limit ~%d  %.1f%%\n",
			u.Total(), u.TextCount, u.ImageCount, view.DailyLimit, view.Percent)
		return err
	}
	return writeJSON(cmd.OutOrStdout(), view)
}

func runUsageList(opts *RootOptions, cmd *cobra.Command) error {
	e, err := opts.open(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	rec := e.ledger().Snapshot(cmd.Context(), e.now)
	if opts.Format != "text" {
		return writeJSON(cmd.OutOrStdout(), rec)
	}

	principals := make([]string, 0, len(rec.Keys))
	for p := range rec.Keys {
		principals = append(principals, p)
	}
	sort.Strings(principals)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", rec.Date)
	for _, p := range principals {
		u := rec.Keys[p]
		fmt.Fprintf(out, "  %s  text=%d image=%d\n", p, u.TextCount, u.ImageCount)
	}
	return nil
}
