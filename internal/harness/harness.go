package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/tbaudit/internal/audit"
	"github.com/roach88/tbaudit/internal/canon"
	"github.com/roach88/tbaudit/internal/reconcile"
	"github.com/roach88/tbaudit/internal/testutil"
)

// errScenarioUnavailable is returned by a source marked unavailable.
var errScenarioUnavailable = errors.New("source marked unavailable by scenario")

// Run executes a scenario and returns the result.
//
// Each scenario runs against fresh in-memory sources. Execution flow:
// 1. Build ledger records and local rows from the scenario steps
// 2. Reconcile the scenario task
// 3. Check the report's count invariant
// 4. Evaluate the assertions
//
// An error is returned only when the scenario cannot be executed; failed
// assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	ledger := testutil.NewFakeLedger()
	local := testutil.NewFakeLocal()

	ledgerRecs := buildLedger(scenario)
	localRecs, err := buildLocal(scenario)
	if err != nil {
		return nil, err
	}
	ledger.Set(scenario.TaskID, ledgerRecs...)
	local.Set(scenario.TaskID, localRecs...)

	if scenario.LedgerUnavailable {
		ledger.Err = errScenarioUnavailable
	}
	if scenario.LocalUnavailable {
		local.Err = errScenarioUnavailable
	}

	eng := reconcile.New(ledger, local,
		reconcile.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
	)

	result := NewResult()
	report, err := eng.Reconcile(context.Background(), scenario.TaskID)
	switch {
	case reconcile.IsSourceUnavailable(err):
		result.Unavailable = reconcile.UnavailableSide(err)
	case err != nil:
		return nil, fmt.Errorf("failed to reconcile %s: %w", scenario.TaskID, err)
	default:
		result.Report = report
		if err := report.Validate(); err != nil {
			result.AddError(fmt.Sprintf("report invariant violated: %v", err))
		}
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

func stepTask(scenario *Scenario, override string) string {
	if override != "" {
		return override
	}
	return scenario.TaskID
}

func buildLedger(scenario *Scenario) []audit.LedgerRecord {
	recs := make([]audit.LedgerRecord, 0, len(scenario.Ledger))
	for _, step := range scenario.Ledger {
		e := testutil.Entry(stepTask(scenario, step.TaskID), step.Stage, step.TS)
		if step.Hash != "" {
			e.ContentHash = step.Hash
		}
		recs = append(recs, testutil.Ledger(e, step.Height))
	}
	return recs
}

func buildLocal(scenario *Scenario) ([]audit.LocalRecord, error) {
	recs := make([]audit.LocalRecord, 0, len(scenario.Local))
	for i, step := range scenario.Local {
		rec := testutil.Local(int64(i+1), testutil.Entry(stepTask(scenario, step.TaskID), step.Stage, step.TS))

		for key, raw := range step.Tamper {
			v, err := canon.FromGo(raw)
			if err != nil {
				return nil, fmt.Errorf("local[%d].tamper[%q]: %w", i, key, err)
			}
			rec = testutil.Tamper(rec, key, v)
		}
		if step.Payload != "" {
			rec.DetailPayload = step.Payload
		}
		if step.Hash != "" {
			rec.ContentHash = step.Hash
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
