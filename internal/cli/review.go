package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ineyio/drillkit"
)

type reviewView struct {
	ID               string `json:"id"`
	IntervalSeconds  int    `json:"intervalSeconds"`
	StartedAt        int64  `json:"startedAt,omitempty"`
	RemainingSeconds int    `json:"remainingSeconds"`
	Step             int    `json:"step"`
	Steps            int    `json:"steps"`
	Label            string `json:"label"`
}

// NewReviewCommand creates the review command group.
func NewReviewCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Manage review timers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Register a new item, immediately due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReview(opts, cmd, func(b *drillkit.Book, e *env) (string, drillkit.ReviewState, error) {
				return b.Create(cmd.Context())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status <id>",
		Short: "Show the time left before an item is due",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReview(opts, cmd, func(b *drillkit.Book, e *env) (string, drillkit.ReviewState, error) {
				state, err := b.Lookup(cmd.Context(), args[0])
				return args[0], state, err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "done <id>",
		Short: "Record a completed review and escalate the interval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReview(opts, cmd, func(b *drillkit.Book, e *env) (string, drillkit.ReviewState, error) {
				state, err := b.Complete(cmd.Context(), args[0], e.now)
				return args[0], state, err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset <id>",
		Short: "Return an item to the first interval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReview(opts, cmd, func(b *drillkit.Book, e *env) (string, drillkit.ReviewState, error) {
				state, err := b.Reset(cmd.Context(), args[0])
				return args[0], state, err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored items with their time left",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReviewList(opts, cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Forget an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			book, err := e.book()
			if err != nil {
				return err
			}
			if _, err := book.Lookup(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := book.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			if opts.Format == "text" {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
		},
	})

	return cmd
}

func runReviewList(opts *RootOptions, cmd *cobra.Command) error {
	e, err := opts.open(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	book, err := e.book()
	if err != nil {
		return err
	}
	ids, err := book.List(cmd.Context())
	if err != nil {
		return err
	}

	views := make([]reviewView, 0, len(ids))
	for _, id := range ids {
		views = append(views, newReviewView(book.Scheduler(), id, book.Load(cmd.Context(), id), e.now))
	}

	if opts.Format == "text" {
		for _, v := range views {
			if err := writeReviewText(cmd, v); err != nil {
				return err
			}
		}
		return nil
	}
	return writeJSON(cmd.OutOrStdout(), views)
}

func newReviewView(sched *drillkit.Scheduler, id string, state drillkit.ReviewState, now time.Time) reviewView {
	rem := sched.Remaining(state, now)
	return reviewView{
		ID:               id,
		IntervalSeconds:  state.IntervalSeconds,
		StartedAt:        state.StartedAt,
		RemainingSeconds: rem,
		Step:             sched.Step(state),
		Steps:            sched.Len(),
		Label:            DueLabel(rem),
	}
}

func writeReviewText(cmd *cobra.Command, v reviewView) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  [%s]  %s  (interval %ds)\n",
		v.ID, Ladder(v.Step, v.Steps), v.Label, v.IntervalSeconds)
	return err
}

func runReview(opts *RootOptions, cmd *cobra.Command, op func(*drillkit.Book, *env) (string, drillkit.ReviewState, error)) error {
	e, err := opts.open(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	book, err := e.book()
	if err != nil {
		return err
	}

	id, state, err := op(book, e)
	if err != nil {
		return err
	}

	view := newReviewView(book.Scheduler(), id, state, e.now)
	if opts.Format == "text" {
		return writeReviewText(cmd, view)
	}
	return writeJSON(cmd.OutOrStdout(), view)
}
