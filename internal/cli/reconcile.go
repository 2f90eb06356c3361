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

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	All           bool
	FailOnAnomaly bool
}

// ReconcileOutput is the JSON payload of the reconcile command.
type ReconcileOutput struct {
	Reports  []*audit.Report `json:"reports"`
	Failures []TaskFailure   `json:"failures"`
}

// TaskFailure describes a task that could not be audited.
type TaskFailure struct {
	TaskID    string     `json:"task_id"`
	Side      audit.Side `json:"side,omitempty"`
	Retryable bool       `json:"retryable"`
	Message   string     `json:"message"`
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile [task-id...]",
		Short: "Audit tasks against the ledger",
		Long: `Reconcile the log stages the ledger holds for each task against the rows
in the local store.

Every stage is reported as match, mismatch, missingLocal or orphanLocal.
Records that fail shape validation are listed separately as malformed.

Exit codes:
  0 - all tasks audited (anomalies do not fail unless --fail-on-anomaly)
  1 - anomalies found and --fail-on-anomaly set
  2 - command error
  3 - a source was unavailable; retry later

Example:
  tbaudit reconcile T1
  tbaudit reconcile --all --fail-on-anomaly --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "audit every task with local rows")
	cmd.Flags().BoolVar(&opts.FailOnAnomaly, "fail-on-anomaly", false, "exit 1 when any task has anomalies")

	return cmd
}

func runReconcile(opts *ReconcileOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if opts.All && len(args) > 0 {
		return f.Error(CodeCommand, NewExitError(ExitCommandError, "--all cannot be combined with task ids"))
	}
	if !opts.All && len(args) == 0 {
		return f.Error(CodeCommand, NewExitError(ExitCommandError, "at least one task id (or --all) is required"))
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

	taskIDs := args
	if opts.All {
		taskIDs, err = sess.store.ListTaskIDs(ctx)
		if err != nil {
			return f.Error(CodeStore, WrapExitError(ExitCommandError, "failed to list tasks", err))
		}
	}
	f.VerboseLog("Reconciling %d task(s)", len(taskIDs))

	out := ReconcileOutput{
		Reports:  []*audit.Report{},
		Failures: []TaskFailure{},
	}
	for _, res := range sess.engine.ReconcileMany(ctx, taskIDs) {
		if res.Err != nil {
			out.Failures = append(out.Failures, taskFailure(res.TaskID, res.Err))
			continue
		}
		out.Reports = append(out.Reports, res.Report)
	}

	text := func(w io.Writer) { writeReconcileText(w, out, opts.Verbose) }
	if len(out.Failures) > 0 {
		err = f.Partial(out, failureError(out.Failures), text)
	} else {
		err = f.Success(out, text)
	}
	if err != nil {
		return err
	}

	return reconcileExit(out, taskIDs, opts.FailOnAnomaly)
}

func taskFailure(taskID string, err error) TaskFailure {
	f := TaskFailure{TaskID: taskID, Message: err.Error()}
	var unavailable *reconcile.SourceUnavailableError
	if errors.As(err, &unavailable) {
		f.Side = unavailable.Side
		f.Retryable = unavailable.Retryable()
	}
	return f
}

// reconcileExit picks the exit code: an unavailable source wins over other
// failures, which win over anomalies.
func reconcileExit(out ReconcileOutput, taskIDs []string, failOnAnomaly bool) error {
	for _, f := range out.Failures {
		if f.Retryable {
			return NewExitError(ExitSourceUnavailable, fmt.Sprintf("task %s: source unavailable", f.TaskID))
		}
	}
	if len(out.Failures) > 0 {
		f := out.Failures[0]
		return NewExitError(ExitCommandError, fmt.Sprintf("task %s: %s", f.TaskID, f.Message))
	}
	if failOnAnomaly {
		for _, r := range out.Reports {
			if r.HasAnomalies() {
				return NewExitError(ExitFailure, fmt.Sprintf("anomalies found in %d of %d task(s)", countAnomalous(out.Reports), len(taskIDs)))
			}
		}
	}
	return nil
}

func countAnomalous(reports []*audit.Report) int {
	n := 0
	for _, r := range reports {
		if r.HasAnomalies() {
			n++
		}
	}
	return n
}

// failureError summarises the tasks that could not be audited. Any
// retryable failure makes the batch SOURCE_UNAVAILABLE.
func failureError(failures []TaskFailure) *CLIError {
	code := CodeAuditFailed
	for _, f := range failures {
		if f.Retryable {
			code = CodeSourceUnavailable
			break
		}
	}
	return &CLIError{
		Code:    code,
		Message: fmt.Sprintf("%d task(s) could not be audited", len(failures)),
	}
}

func writeReconcileText(w io.Writer, out ReconcileOutput, verbose bool) {
	for _, r := range out.Reports {
		writeReportText(w, r, verbose)
	}
	for _, f := range out.Failures {
		suffix := ""
		if f.Retryable {
			suffix = " (retryable)"
		}
		fmt.Fprintf(w, "✗ Task %s: %s%s\n", f.TaskID, f.Message, suffix)
	}

	anomalous := countAnomalous(out.Reports)
	fmt.Fprintf(w, "\nAudited %d task(s): %d clean, %d with anomalies, %d failed\n",
		len(out.Reports)+len(out.Failures),
		len(out.Reports)-anomalous,
		anomalous,
		len(out.Failures))
}

func writeReportText(w io.Writer, r *audit.Report, verbose bool) {
	verdict := "clean"
	if r.HasAnomalies() {
		verdict = "anomalies found"
	}
	s := r.Summary
	fmt.Fprintf(w, "Task %s: %s\n", r.TaskID, verdict)
	fmt.Fprintf(w, "  ledger rows: %d, local rows: %d\n", s.LedgerRows, s.LocalRows)

	for _, item := range r.Items {
		mark := "✗"
		if item.Status == audit.StatusMatch {
			mark = "✓"
		}
		status := string(item.Status)
		if item.Reason != "" {
			status = fmt.Sprintf("%s (%s)", item.Status, item.Reason)
		}
		fmt.Fprintf(w, "  %s %-7s %d  %s\n", mark, item.Stage, item.Timestamp, status)
		if verbose {
			writeHashes(w, item)
		}
	}
	for _, m := range r.Malformed {
		fmt.Fprintf(w, "  ! %s %s malformed: %s\n", m.Side, m.Key, m.Reason)
	}

	fmt.Fprintf(w, "  summary: %d match, %d mismatch, %d missing local, %d orphan local, %d malformed\n",
		s.Matches, s.Mismatches, s.MissingLocal, s.OrphanLocal, s.Malformed)
}

func writeHashes(w io.Writer, item audit.Item) {
	if item.LedgerHash != "" {
		fmt.Fprintf(w, "      ledger:     %s\n", item.LedgerHash)
	}
	if item.LocalHash != "" {
		fmt.Fprintf(w, "      local:      %s\n", item.LocalHash)
	}
	if item.RecomputedHash != "" {
		fmt.Fprintf(w, "      recomputed: %s\n", item.RecomputedHash)
	}
}
