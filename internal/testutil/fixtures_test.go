package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tbaudit/internal/canon"
)

func TestEntryIsDeterministic(t *testing.T) {
	a := Entry("T1", "EXEC", 1700000060)
	b := Entry("T1", "EXEC", 1700000060)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a.ContentHash, Entry("T1", "EXEC", 1700000061).ContentHash)
	assert.Empty(t, a.ResultHash)
	assert.NotEmpty(t, Entry("T1", "RESULT", 1700000120).ResultHash)
}

func TestLocalPayloadHashesToEntry(t *testing.T) {
	e := Entry("T1", "RECV", 1700000000)
	rec := Local(7, e)
	assert.Equal(t, int64(7), rec.ID)
	assert.Equal(t, e.ContentHash, canon.Sum([]byte(rec.DetailPayload)))
}

func TestTamperKeepsHash(t *testing.T) {
	rec := Local(1, Entry("T1", "RECV", 1700000000))
	tampered := Tamper(rec, "audit_note", canon.String("db_mutated"))
	assert.Equal(t, rec.ContentHash, tampered.ContentHash)
	assert.NotEqual(t, rec.DetailPayload, tampered.DetailPayload)

	recomputed, err := tampered.RecomputeHash()
	require.NoError(t, err)
	assert.NotEqual(t, tampered.ContentHash, recomputed)
}

func TestScenarioT1Shape(t *testing.T) {
	fx := ScenarioT1()
	assert.Equal(t, "T1", fx.TaskID)
	require.Len(t, fx.Ledger, 3)
	require.Len(t, fx.Local, 3)
	assert.Equal(t, fx.Ledger[0].ContentHash, fx.Local[0].ContentHash)
	assert.Equal(t, fx.Ledger[1].ContentHash, fx.Local[1].ContentHash)
	assert.Equal(t, int64(1700003780), fx.Local[2].Timestamp)
}

func TestFakesReturnCopies(t *testing.T) {
	ledger := NewFakeLedger()
	local := NewFakeLocal()
	Load(ScenarioT1(), ledger, local)

	ctx := context.Background()
	recs, err := ledger.ListLogStages(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	recs[0].Stage = "CHANGED"

	again, err := ledger.ListLogStages(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "RECV", again[0].Stage)
	assert.Equal(t, int64(2), ledger.Calls())

	rows, err := local.ListLocalEntries(ctx, "unknown")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestFakeErrAndDelay(t *testing.T) {
	local := NewFakeLocal()
	local.Err = errors.New("disk I/O error")
	_, err := local.ListLocalEntries(context.Background(), "T1")
	assert.EqualError(t, err, "disk I/O error")

	ledger := NewFakeLedger()
	ledger.Delay = time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = ledger.ListLogStages(ctx, "T1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
