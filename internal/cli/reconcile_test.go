package cli

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tbaudit/internal/audit"
	"github.com/roach88/tbaudit/internal/testutil"
)

func TestReconcileRequiresTaskOrAll(t *testing.T) {
	_, _, err := execute(&RootOptions{}, "reconcile", "--db", testDB(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "task id")
}

func TestReconcileRejectsAllWithTaskIDs(t *testing.T) {
	_, _, err := execute(&RootOptions{}, "reconcile", "--db", testDB(t), "--all", "T1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReconcileScenarioT1Text(t *testing.T) {
	dbPath := testDB(t)
	ledger := seedScenarioT1(t, dbPath)

	out, _, err := execute(&RootOptions{Ledger: ledger}, "reconcile", "--db", dbPath, "T1")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "reconcile_t1", []byte(out))
}

func TestReconcileScenarioT1JSON(t *testing.T) {
	dbPath := testDB(t)
	ledger := seedScenarioT1(t, dbPath)

	out, _, err := execute(&RootOptions{Ledger: ledger}, "reconcile", "--db", dbPath, "--format", "json", "T1")
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   ReconcileOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Reports, 1)
	assert.Empty(t, resp.Data.Failures)

	report := resp.Data.Reports[0]
	assert.Equal(t, "T1", report.TaskID)
	assert.Equal(t, audit.Summary{
		LedgerRows:   3,
		LocalRows:    3,
		Matches:      1,
		Mismatches:   1,
		MissingLocal: 1,
		OrphanLocal:  1,
	}, report.Summary)
	require.Len(t, report.Items, 4)
	assert.Equal(t, audit.ReasonStaleHash, report.Items[1].Reason)
	assert.NotEqual(t, report.Items[1].LocalHash, report.Items[1].RecomputedHash)
}

func TestReconcileVerboseShowsHashes(t *testing.T) {
	dbPath := testDB(t)
	ledger := seedScenarioT1(t, dbPath)
	fx := testutil.ScenarioT1()

	out, _, err := execute(&RootOptions{Ledger: ledger}, "reconcile", "--db", dbPath, "-v", "T1")
	require.NoError(t, err)
	assert.Contains(t, out, "ledger:     "+fx.Ledger[0].ContentHash)
	assert.Contains(t, out, "recomputed: ")
}

func TestReconcileAll(t *testing.T) {
	dbPath := testDB(t)
	ledger := seedScenarioT1(t, dbPath)

	out, _, err := execute(&RootOptions{Ledger: ledger}, "reconcile", "--db", dbPath, "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Task T1: anomalies found")
	assert.Contains(t, out, "Audited 1 task(s)")
}

func TestReconcileFailOnAnomaly(t *testing.T) {
	dbPath := testDB(t)
	ledger := seedScenarioT1(t, dbPath)

	_, _, err := execute(&RootOptions{Ledger: ledger}, "reconcile", "--db", dbPath, "--fail-on-anomaly", "T1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "anomalies found in 1 of 1 task(s)")
}

func TestReconcileCleanTaskPassesFailOnAnomaly(t *testing.T) {
	dbPath := testDB(t)
	ledger := seedScenarioT1(t, dbPath)
	ledger.Set("T2")

	out, _, err := execute(&RootOptions{Ledger: ledger}, "reconcile", "--db", dbPath, "--fail-on-anomaly", "T2")
	require.NoError(t, err)
	assert.Contains(t, out, "Task T2: clean")
	assert.Contains(t, out, "Audited 1 task(s): 1 clean, 0 with anomalies, 0 failed")
}

func TestReconcileSourceUnavailable(t *testing.T) {
	dbPath := testDB(t)
	ledger := seedScenarioT1(t, dbPath)
	ledger.Err = errors.New("rpc error: connection refused")

	out, _, err := execute(&RootOptions{Ledger: ledger}, "reconcile", "--db", dbPath, "--format", "json", "T1")
	require.Error(t, err)
	assert.Equal(t, ExitSourceUnavailable, GetExitCode(err))

	var resp struct {
		Status string          `json:"status"`
		Data   ReconcileOutput `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SOURCE_UNAVAILABLE", resp.Error.Code)
	require.Len(t, resp.Data.Failures, 1)

	f := resp.Data.Failures[0]
	assert.Equal(t, "T1", f.TaskID)
	assert.Equal(t, audit.SideLedger, f.Side)
	assert.True(t, f.Retryable)
	assert.Contains(t, f.Message, "connection refused")
	assert.Empty(t, resp.Data.Reports)
}

func TestReconcileMissingConfigFile(t *testing.T) {
	_, _, err := execute(&RootOptions{}, "reconcile", "--config", "/nonexistent/tbaudit.yaml", "T1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}
