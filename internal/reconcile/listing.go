package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/tbaudit/internal/audit"
)

// ListSource reads a single side of a task and returns it as a degraded
// listing. The listing is labelled Degraded and carries no classification;
// Reconcile never falls back to it.
func (e *Engine) ListSource(ctx context.Context, taskID string, side audit.Side) (*audit.Listing, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, ErrEmptyTaskID
	}

	listing := &audit.Listing{
		TaskID:    taskID,
		Source:    side,
		Degraded:  true,
		Malformed: []audit.MalformedRecord{},
	}

	switch side {
	case audit.SideLedger:
		recs, err := e.readLedger(ctx, taskID)
		if err != nil {
			return nil, err
		}
		listing.Ledger = []audit.LedgerRecord{}
		for i, r := range recs {
			if err := audit.ValidateLedgerRecord(r, taskID); err != nil {
				listing.Malformed = append(listing.Malformed, audit.MalformedLedger(r, i, err))
				continue
			}
			listing.Ledger = append(listing.Ledger, r)
		}
	case audit.SideLocal:
		recs, err := e.readLocal(ctx, taskID)
		if err != nil {
			return nil, err
		}
		listing.Local = []audit.LocalRecord{}
		for _, r := range recs {
			if err := audit.ValidateLocalRecord(r, taskID); err != nil {
				listing.Malformed = append(listing.Malformed, audit.MalformedLocal(r, err))
				continue
			}
			listing.Local = append(listing.Local, r)
		}
	default:
		return nil, fmt.Errorf("list source: unknown side %q", side)
	}

	e.logger.Info("listed single source",
		"task_id", taskID,
		"source", side,
		"degraded", true,
		"ledger_rows", len(listing.Ledger),
		"local_rows", len(listing.Local),
		"malformed", len(listing.Malformed))
	return listing, nil
}
