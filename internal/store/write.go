package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/tbaudit/internal/audit"
	"github.com/roach88/tbaudit/internal/canon"
)

// LedgerRef is the ledger cross-reference of a stored row.
type LedgerRef struct {
	TxHash  string
	Height  int64
	Signer  string
	MsgType string
}

// TaskResult is the chosen result of a task.
type TaskResult struct {
	TaskID         string
	ChosenEdgeAddr string
	Result         canon.Object
	ResultHash     string
	ResultSig      string
	Verified       bool
	TxHash         string
	Height         *int64
	Signer         string
	CreatedAt      int64
	UpdatedAt      int64
}

// WriteLogDetail inserts a log row. Returns the row ID and whether a new row
// was inserted.
//
// The row's DetailPayload must be canonical JSON hashing to ContentHash, and
// its columns must match the payload; rows built by audit.NewLocalRecord
// satisfy this. Uses ON CONFLICT(task_id, stage,
// log_hash) DO NOTHING: writing the same detail twice returns the existing ID
// and inserted=false.
func (s *Store) WriteLogDetail(ctx context.Context, rec audit.LocalRecord) (id int64, inserted bool, err error) {
	if strings.TrimSpace(rec.DetailPayload) == "" {
		return 0, false, fmt.Errorf("write log detail: empty detail payload")
	}
	detail, err := canon.DecodeObject([]byte(rec.DetailPayload))
	if err != nil {
		return 0, false, fmt.Errorf("write log detail: %w", err)
	}
	canonical, err := canon.Marshal(detail)
	if err != nil {
		return 0, false, fmt.Errorf("write log detail: %w", err)
	}
	if string(canonical) != rec.DetailPayload {
		return 0, false, fmt.Errorf("write log detail: detail payload is not in canonical form")
	}
	if got := canon.Sum(canonical); got != rec.ContentHash {
		return 0, false, fmt.Errorf("write log detail: log hash %q does not match detail payload hash %q", rec.ContentHash, got)
	}
	drift, err := rec.DriftedColumns()
	if err != nil {
		return 0, false, fmt.Errorf("write log detail: %w", err)
	}
	if len(drift) > 0 {
		return 0, false, fmt.Errorf("write log detail: columns %v do not match detail payload", drift)
	}

	createdAt := rec.CreatedAt
	if createdAt == 0 {
		createdAt = s.now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("write log detail: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO log_details
		(task_id, edge_addr, stage, ts, cpu_ms, mem_mb_peak, net_kb, latency_ms,
		 result_hash, log_hash, detail_json, tx_hash, height, msg_type, signer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id, stage, log_hash) DO NOTHING
	`,
		rec.TaskID,
		nullString(rec.EdgeAddr),
		rec.Stage,
		rec.Timestamp,
		rec.Metrics.CPUMs,
		rec.Metrics.MemMBPeak,
		rec.Metrics.NetKB,
		rec.Metrics.LatencyMs,
		nullString(rec.ResultHash),
		rec.ContentHash,
		rec.DetailPayload,
		nullString(rec.TxHash),
		nullInt64(rec.Height),
		nullString(rec.MsgType),
		nullString(rec.Signer),
		createdAt,
	)
	if err != nil {
		return 0, false, fmt.Errorf("write log detail: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("write log detail: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		id, err = result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("write log detail: last insert id: %w", err)
		}
		inserted = true
	} else {
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM log_details
			WHERE task_id = ? AND stage = ? AND log_hash = ?
		`, rec.TaskID, rec.Stage, rec.ContentHash).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("write log detail: select existing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("write log detail: commit: %w", err)
	}

	return id, inserted, nil
}

// AttachLedgerRef records where a stored row landed on the ledger.
// Returns ErrNotFound if no row has the given ID.
func (s *Store) AttachLedgerRef(ctx context.Context, id int64, ref LedgerRef) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE log_details
		SET tx_hash = ?, height = ?, signer = ?, msg_type = ?
		WHERE id = ?
	`,
		nullString(ref.TxHash),
		ref.Height,
		nullString(ref.Signer),
		nullString(ref.MsgType),
		id,
	)
	if err != nil {
		return fmt.Errorf("attach ledger ref: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach ledger ref: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("attach ledger ref: row %d: %w", id, ErrNotFound)
	}
	return nil
}

// UpsertTaskResult inserts or replaces the result of a task. Writing the
// same result twice leaves one row; created_at is kept from the first write.
func (s *Store) UpsertTaskResult(ctx context.Context, tr TaskResult) error {
	if strings.TrimSpace(tr.TaskID) == "" {
		return fmt.Errorf("upsert task result: task id is required")
	}
	resultJSON, err := marshalResult(tr.Result)
	if err != nil {
		return fmt.Errorf("upsert task result: %w", err)
	}

	now := s.now().Unix()
	verified := 0
	if tr.Verified {
		verified = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_results
		(task_id, chosen_edge_addr, result_json, result_hash, result_sig, verified,
		 tx_hash, height, signer, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			chosen_edge_addr = excluded.chosen_edge_addr,
			result_json = excluded.result_json,
			result_hash = excluded.result_hash,
			result_sig = excluded.result_sig,
			verified = excluded.verified,
			tx_hash = excluded.tx_hash,
			height = excluded.height,
			signer = excluded.signer,
			updated_at = excluded.updated_at
	`,
		tr.TaskID,
		tr.ChosenEdgeAddr,
		resultJSON,
		tr.ResultHash,
		nullString(tr.ResultSig),
		verified,
		nullString(tr.TxHash),
		nullInt64(tr.Height),
		nullString(tr.Signer),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert task result: %w", err)
	}
	return nil
}
