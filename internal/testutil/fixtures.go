// Package testutil provides fixtures and in-memory adapters for tests.
package testutil

import (
	"fmt"

	"github.com/roach88/tbaudit/internal/audit"
	"github.com/roach88/tbaudit/internal/canon"
)

// Entry builds a well-formed log stage entry with its content hash set.
// Metrics are derived from ts so different timestamps give different hashes.
func Entry(taskID, stage string, ts int64) audit.LogStageEntry {
	e := audit.LogStageEntry{
		TaskID:    taskID,
		EdgeAddr:  "cosmos1edge" + taskID,
		Stage:     stage,
		Timestamp: ts,
		Metrics: audit.Metrics{
			CPUMs:     10 + ts%50,
			MemMBPeak: 100 + ts%200,
			NetKB:     5 + ts%70,
			LatencyMs: 60 + ts%300,
		},
	}
	if audit.NormalizeStage(stage).Terminal() {
		e.ResultHash = canon.MustContentHash(canon.Object{"task_id": canon.String(taskID), "ok": canon.Bool(true)})
	}
	e.ContentHash = canon.MustContentHash(e.Detail())
	return e
}

// Ledger wraps an entry as a ledger record with deterministic chain metadata.
func Ledger(e audit.LogStageEntry, height int64) audit.LedgerRecord {
	return audit.LedgerRecord{
		LogStageEntry: e,
		TxHash:        canon.Sum([]byte(fmt.Sprintf("tx:%s:%s:%d", e.TaskID, e.Stage, e.Timestamp))),
		Height:        height,
		Signer:        e.EdgeAddr,
		MsgType:       "submitLogSummary",
	}
}

// Local wraps an entry as an unaltered local row: its detail payload is the
// canonical encoding of the entry and hashes to e.ContentHash.
func Local(id int64, e audit.LogStageEntry) audit.LocalRecord {
	rec, err := audit.NewLocalRecord(e, nil)
	if err != nil {
		panic(err)
	}
	if rec.ContentHash != e.ContentHash {
		panic(fmt.Sprintf("fixture entry hash %s does not match its detail", e.ContentHash))
	}
	rec.ID = id
	rec.CreatedAt = e.Timestamp
	return rec
}

// Tamper alters a local row's detail payload after its hash was written,
// leaving ContentHash untouched.
func Tamper(rec audit.LocalRecord, key string, value canon.Value) audit.LocalRecord {
	detail, err := canon.DecodeObject([]byte(rec.DetailPayload))
	if err != nil {
		panic(err)
	}
	detail[key] = value
	rec.DetailPayload = string(canon.MustMarshal(detail))
	return rec
}

// TaskFixture is a ledger/local snapshot pair for one task.
type TaskFixture struct {
	TaskID string
	Ledger []audit.LedgerRecord
	Local  []audit.LocalRecord
}

// ScenarioT1 builds the reference scenario: ledger RECV (h1), EXEC (h2),
// RESULT (h3); local rows for h1 unaltered, h2 with a tampered payload, and
// an unrelated orphan h9.
func ScenarioT1() TaskFixture {
	clock := NewDeterministicClock()
	recv := Entry("T1", string(audit.StageReceived), clock.Next())
	exec := Entry("T1", string(audit.StageExecuting), clock.Next())
	result := Entry("T1", string(audit.StageResult), clock.Next())

	orphanEntry := Entry("T1", string(audit.StageExecuting), clock.Next()+3600)

	return TaskFixture{
		TaskID: "T1",
		Ledger: []audit.LedgerRecord{
			Ledger(recv, 10001),
			Ledger(exec, 10002),
			Ledger(result, 10003),
		},
		Local: []audit.LocalRecord{
			Local(1, recv),
			Tamper(Local(2, exec), "audit_note", canon.String("db_mutated")),
			Local(3, orphanEntry),
		},
	}
}
