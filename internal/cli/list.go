package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tbaudit/internal/audit"
	"github.com/roach88/tbaudit/internal/reconcile"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Source string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <task-id>",
		Short: "List one source of a task without reconciling",
		Long: `List the records a single source holds for a task.

The listing is DEGRADED: only one side is read, so nothing is classified.
Use it to inspect a task while the other source is unavailable.

Example:
  tbaudit list T1 --source ledger
  tbaudit list T1 --source local --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", string(audit.SideLocal), "source to list (ledger|local)")

	return cmd
}

func runList(opts *ListOptions, taskID string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	side, err := audit.ParseSide(opts.Source)
	if err != nil {
		return f.Error(CodeInvalidInput, WrapExitError(ExitCommandError, "invalid --source", err))
	}

	sess, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return f.Error(CodeCommand, err)
	}
	defer sess.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	f.VerboseLog("Listing %s source of task %s", side, taskID)
	listing, err := sess.engine.ListSource(ctx, taskID, side)
	if err != nil {
		switch {
		case reconcile.IsSourceUnavailable(err):
			return f.Error(CodeSourceUnavailable, WrapExitError(ExitSourceUnavailable, "source unavailable", err))
		case errors.Is(err, reconcile.ErrEmptyTaskID):
			return f.Error(CodeInvalidTaskID, WrapExitError(ExitCommandError, "invalid task id", err))
		}
		return f.Error(CodeCommand, WrapExitError(ExitCommandError, "list failed", err))
	}

	return f.Success(listing, func(w io.Writer) {
		writeListingText(w, listing)
	})
}

func writeListingText(w io.Writer, l *audit.Listing) {
	fmt.Fprintf(w, "Task %s: %s source only (DEGRADED, not reconciled)\n", l.TaskID, l.Source)

	switch l.Source {
	case audit.SideLedger:
		for _, r := range l.Ledger {
			fmt.Fprintf(w, "  %-7s %d  height=%d tx=%s\n", r.Stage, r.Timestamp, r.Height, r.TxHash)
		}
		fmt.Fprintf(w, "  %d ledger record(s)", len(l.Ledger))
	case audit.SideLocal:
		for _, r := range l.Local {
			fmt.Fprintf(w, "  %-7s %d  row=%d hash=%s\n", r.Stage, r.Timestamp, r.ID, r.ContentHash)
		}
		fmt.Fprintf(w, "  %d local row(s)", len(l.Local))
	}
	fmt.Fprintf(w, ", %d malformed\n", len(l.Malformed))

	for _, m := range l.Malformed {
		fmt.Fprintf(w, "  ! %s malformed: %s\n", m.Key, m.Reason)
	}
}
