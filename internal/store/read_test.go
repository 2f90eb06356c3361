package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tbaudit/internal/audit"
	"github.com/roach88/tbaudit/internal/reconcile"
	"github.com/roach88/tbaudit/internal/testutil"
)

func TestListLocalEntries_StoreOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Written out of timestamp order: store order is insertion order.
	entries := []audit.LogStageEntry{
		testutil.Entry("T1", "RESULT", 1700000120),
		testutil.Entry("T1", "RECV", 1700000000),
		testutil.Entry("T2", "RECV", 1700000001),
		testutil.Entry("T1", "EXEC", 1700000060),
	}
	for _, e := range entries {
		_, _, err := s.WriteLogDetail(ctx, testutil.Local(0, e))
		require.NoError(t, err)
	}

	rows, err := s.ListLocalEntries(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"RESULT", "RECV", "EXEC"}, []string{rows[0].Stage, rows[1].Stage, rows[2].Stage})
	assert.Less(t, rows[0].ID, rows[1].ID)
	assert.Less(t, rows[1].ID, rows[2].ID)
}

func TestListLocalEntries_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	rows, err := s.ListLocalEntries(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestListLocalEntries_RoundTripReconciles(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	e := testutil.Entry("T1", "RESULT", 1700000120)
	_, _, err := s.WriteLogDetail(ctx, testutil.Local(0, e))
	require.NoError(t, err)

	rows, err := s.ListLocalEntries(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NoError(t, audit.ValidateLocalRecord(rows[0], "T1"))

	recomputed, err := rows[0].RecomputeHash()
	require.NoError(t, err)
	assert.Equal(t, e.ContentHash, recomputed)
	assert.Equal(t, e.ResultHash, rows[0].ResultHash)
}

func TestListLocalEntries_UnparseableColumnMarksRow(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, e := range []audit.LogStageEntry{
		testutil.Entry("T1", "RECV", 1700000000),
		testutil.Entry("T1", "EXEC", 1700000060),
	} {
		_, _, err := s.WriteLogDetail(ctx, testutil.Local(0, e))
		require.NoError(t, err)
	}
	_, err := s.db.ExecContext(ctx, `UPDATE log_details SET ts = 'garbage' WHERE stage = 'EXEC'`)
	require.NoError(t, err)

	rows, err := s.ListLocalEntries(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Empty(t, rows[0].Defect)
	assert.Equal(t, `ts: invalid integer "garbage"`, rows[1].Defect)
	assert.Error(t, audit.ValidateLocalRecord(rows[1], "T1"))
}

func TestListLocalEntries_UnparseableColumnIsolatedInReport(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	recv := testutil.Entry("T1", "RECV", 1700000000)
	exec := testutil.Entry("T1", "EXEC", 1700000060)
	for _, e := range []audit.LogStageEntry{recv, exec} {
		_, _, err := s.WriteLogDetail(ctx, testutil.Local(0, e))
		require.NoError(t, err)
	}
	_, err := s.db.ExecContext(ctx, `UPDATE log_details SET cpu_ms = 'n/a' WHERE stage = 'EXEC'`)
	require.NoError(t, err)

	ledger := testutil.NewFakeLedger()
	ledger.Set("T1", testutil.Ledger(recv, 1), testutil.Ledger(exec, 2))

	report, err := reconcile.New(ledger, s).Reconcile(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, report.Items, 2)
	assert.Equal(t, audit.StatusMatch, report.Items[0].Status)
	assert.Equal(t, audit.StatusMissingLocal, report.Items[1].Status)
	require.Len(t, report.Malformed, 1)
	assert.Equal(t, audit.SideLocal, report.Malformed[0].Side)
	assert.Equal(t, "row:2", report.Malformed[0].Key)
	assert.Contains(t, report.Malformed[0].Reason, "cpu_ms")
}

func TestListLocalEntries_EditedColumnsDoNotMatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	recv := testutil.Entry("T1", "RECV", 1700000000)
	_, _, err := s.WriteLogDetail(ctx, testutil.Local(0, recv))
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `UPDATE log_details SET cpu_ms = 999999, stage = 'RESULT'`)
	require.NoError(t, err)

	ledger := testutil.NewFakeLedger()
	ledger.Set("T1", testutil.Ledger(recv, 1))

	report, err := reconcile.New(ledger, s).Reconcile(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, audit.StatusMismatch, report.Items[0].Status)
	assert.Equal(t, audit.ReasonColumnDrift, report.Items[0].Reason)
}

func TestListLocalEntries_CanceledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ListLocalEntries(ctx, "T1")
	assert.Error(t, err)
}

func TestListTaskIDs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"b", "a", "B", "a"} {
		_, _, err := s.WriteLogDetail(ctx, testutil.Local(0, testutil.Entry(id, "RECV", 1700000000)))
		require.NoError(t, err)
	}

	ids, err := s.ListTaskIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "a", "b"}, ids)
}

func TestReadLogDetail_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadLogDetail(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadTaskResult_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadTaskResult(context.Background(), "T1")
	assert.ErrorIs(t, err, ErrNotFound)
}
