package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/tbaudit/internal/audit"
)

// LedgerReader lists the log stages the ledger holds for a task, in ledger
// order.
type LedgerReader interface {
	ListLogStages(ctx context.Context, taskID string) ([]audit.LedgerRecord, error)
}

// LocalStore lists the log rows the local store holds for a task, in store
// order.
type LocalStore interface {
	ListLocalEntries(ctx context.Context, taskID string) ([]audit.LocalRecord, error)
}

// DefaultTimeout bounds each source read.
const DefaultTimeout = 10 * time.Second

// DefaultConcurrency bounds the number of tasks ReconcileMany audits at once.
const DefaultConcurrency = 4

// Engine reconciles tasks across the ledger and the local store.
//
// Thread-safety: an Engine holds no mutable state besides its metrics
// collectors; concurrent calls are independent.
type Engine struct {
	ledger      LedgerReader
	local       LocalStore
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
	metrics     *Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the per-source read timeout. Non-positive values are
// ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithConcurrency sets how many tasks ReconcileMany audits at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records reconciliations on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine over the two sources.
func New(ledger LedgerReader, local LocalStore, opts ...Option) *Engine {
	e := &Engine{
		ledger:      ledger,
		local:       local,
		timeout:     DefaultTimeout,
		concurrency: DefaultConcurrency,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile audits one task.
//
// Both sources are read concurrently, each bounded by the engine timeout.
// If either read fails, Reconcile returns a *SourceUnavailableError naming
// the side and no report.
func (e *Engine) Reconcile(ctx context.Context, taskID string) (*audit.Report, error) {
	start := time.Now()
	if strings.TrimSpace(taskID) == "" {
		e.metrics.observeFailure(resultInvalid, time.Since(start))
		return nil, ErrEmptyTaskID
	}

	var (
		ledger []audit.LedgerRecord
		local  []audit.LocalRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ledger, err = e.readLedger(gctx, taskID)
		return err
	})
	g.Go(func() error {
		var err error
		local, err = e.readLocal(gctx, taskID)
		return err
	})
	if err := g.Wait(); err != nil {
		e.metrics.observeFailure(resultUnavailable, time.Since(start))
		e.logger.Warn("reconcile aborted",
			"task_id", taskID,
			"side", UnavailableSide(err),
			"error", err)
		return nil, err
	}

	report := Classify(taskID, ledger, local)
	e.metrics.observeReport(report, time.Since(start))

	s := report.Summary
	e.logger.Info("reconciled task",
		"task_id", taskID,
		"ledger_rows", s.LedgerRows,
		"local_rows", s.LocalRows,
		"matches", s.Matches,
		"mismatches", s.Mismatches,
		"missing_local", s.MissingLocal,
		"orphan_local", s.OrphanLocal,
		"malformed", s.Malformed,
		"duration", time.Since(start))
	return report, nil
}

func (e *Engine) readLedger(ctx context.Context, taskID string) ([]audit.LedgerRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	recs, err := e.ledger.ListLogStages(ctx, taskID)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, unavailable(audit.SideLedger, taskID, e.describe(err))
	}
	return recs, nil
}

func (e *Engine) readLocal(ctx context.Context, taskID string) ([]audit.LocalRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	recs, err := e.local.ListLocalEntries(ctx, taskID)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, unavailable(audit.SideLocal, taskID, e.describe(err))
	}
	return recs, nil
}

// describe annotates timeouts with the configured bound.
func (e *Engine) describe(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s: %w", e.timeout, err)
	}
	return err
}
