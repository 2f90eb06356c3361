package reconcile

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/tbaudit/internal/audit"
)

// BatchResult is the outcome of reconciling one task of a batch.
// Exactly one of Report and Err is set.
type BatchResult struct {
	TaskID string
	Report *audit.Report
	Err    error
}

// ReconcileMany audits every task, at most the configured concurrency at a
// time. Results are returned in input order. A failing task does not stop
// the others.
func (e *Engine) ReconcileMany(ctx context.Context, taskIDs []string) []BatchResult {
	results := make([]BatchResult, len(taskIDs))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, taskID := range taskIDs {
		g.Go(func() error {
			report, err := e.Reconcile(ctx, taskID)
			results[i] = BatchResult{TaskID: taskID, Report: report, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
