package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/tbaudit/internal/audit"
)

// FakeLedger is an in-memory ledger reader.
//
// Thread-safety: safe for concurrent use.
type FakeLedger struct {
	mu      sync.Mutex
	records map[string][]audit.LedgerRecord

	// Err, when set, is returned by every call.
	Err error

	// Delay blocks each call until it elapses or the context is done.
	Delay time.Duration

	calls atomic.Int64
}

// NewFakeLedger creates an empty fake ledger.
func NewFakeLedger() *FakeLedger {
	return &FakeLedger{records: make(map[string][]audit.LedgerRecord)}
}

// Set replaces the records of a task.
func (f *FakeLedger) Set(taskID string, recs ...audit.LedgerRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[taskID] = append([]audit.LedgerRecord(nil), recs...)
}

// ListLogStages returns a copy of the task's records.
func (f *FakeLedger) ListLogStages(ctx context.Context, taskID string) ([]audit.LedgerRecord, error) {
	f.calls.Add(1)
	if err := wait(ctx, f.Delay); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]audit.LedgerRecord{}, f.records[taskID]...), nil
}

// Calls returns the number of ListLogStages calls.
func (f *FakeLedger) Calls() int64 { return f.calls.Load() }

// FakeLocal is an in-memory local store.
//
// Thread-safety: safe for concurrent use.
type FakeLocal struct {
	mu      sync.Mutex
	records map[string][]audit.LocalRecord

	Err   error
	Delay time.Duration

	calls atomic.Int64
}

// NewFakeLocal creates an empty fake local store.
func NewFakeLocal() *FakeLocal {
	return &FakeLocal{records: make(map[string][]audit.LocalRecord)}
}

// Set replaces the rows of a task.
func (f *FakeLocal) Set(taskID string, recs ...audit.LocalRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[taskID] = append([]audit.LocalRecord(nil), recs...)
}

// ListLocalEntries returns a copy of the task's rows.
func (f *FakeLocal) ListLocalEntries(ctx context.Context, taskID string) ([]audit.LocalRecord, error) {
	f.calls.Add(1)
	if err := wait(ctx, f.Delay); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]audit.LocalRecord{}, f.records[taskID]...), nil
}

// Calls returns the number of ListLocalEntries calls.
func (f *FakeLocal) Calls() int64 { return f.calls.Load() }

// Load installs a fixture into both fakes.
func Load(fx TaskFixture, ledger *FakeLedger, local *FakeLocal) {
	ledger.Set(fx.TaskID, fx.Ledger...)
	local.Set(fx.TaskID, fx.Local...)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
