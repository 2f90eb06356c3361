package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/tbaudit/internal/audit"
)

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ListLocalEntries returns the log rows of a task in store order
// (ORDER BY id ASC). Returns an empty slice (not nil) if there are none.
func (s *Store) ListLocalEntries(ctx context.Context, taskID string) ([]audit.LocalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, edge_addr, stage, ts, cpu_ms, mem_mb_peak, net_kb, latency_ms,
		       result_hash, log_hash, detail_json, tx_hash, height, msg_type, signer, created_at
		FROM log_details
		WHERE task_id = ?
		ORDER BY id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query log details: %w", err)
	}
	defer rows.Close()

	records := []audit.LocalRecord{}
	for rows.Next() {
		rec, err := scanLogDetail(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log details: %w", err)
	}
	return records, nil
}

// ReadLogDetail returns one log row by ID.
// Returns ErrNotFound if it does not exist.
func (s *Store) ReadLogDetail(ctx context.Context, id int64) (audit.LocalRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, edge_addr, stage, ts, cpu_ms, mem_mb_peak, net_kb, latency_ms,
		       result_hash, log_hash, detail_json, tx_hash, height, msg_type, signer, created_at
		FROM log_details
		WHERE id = ?
	`, id)
	rec, err := scanLogDetail(row)
	if errors.Is(err, sql.ErrNoRows) {
		return audit.LocalRecord{}, fmt.Errorf("read log detail %d: %w", id, ErrNotFound)
	}
	return rec, err
}

// ListTaskIDs returns every task with at least one log row, in binary order.
func (s *Store) ListTaskIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT task_id FROM log_details
		ORDER BY task_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query task ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan task id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task ids: %w", err)
	}
	return ids, nil
}

// ReadTaskResult returns the stored result of a task.
// Returns ErrNotFound if the task has none.
func (s *Store) ReadTaskResult(ctx context.Context, taskID string) (TaskResult, error) {
	var (
		tr         TaskResult
		resultJSON string
		resultSig  sql.NullString
		verified   int
		txHash     sql.NullString
		height     sql.NullInt64
		signer     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT task_id, chosen_edge_addr, result_json, result_hash, result_sig, verified,
		       tx_hash, height, signer, created_at, updated_at
		FROM task_results
		WHERE task_id = ?
	`, taskID).Scan(
		&tr.TaskID, &tr.ChosenEdgeAddr, &resultJSON, &tr.ResultHash, &resultSig, &verified,
		&txHash, &height, &signer, &tr.CreatedAt, &tr.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return TaskResult{}, fmt.Errorf("read task result %q: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return TaskResult{}, fmt.Errorf("read task result: %w", err)
	}

	tr.Result, err = unmarshalResult(resultJSON)
	if err != nil {
		return TaskResult{}, fmt.Errorf("read task result: %w", err)
	}
	tr.ResultSig = resultSig.String
	tr.Verified = verified != 0
	tr.TxHash = txHash.String
	tr.Height = int64Ptr(height)
	tr.Signer = signer.String
	return tr, nil
}

// scanLogDetail scans one log_details row. Raw column values are kept as
// stored: validation happens during reconciliation. Numeric columns are read
// as text so that one unparseable value marks the row with a defect instead
// of failing the whole listing.
func scanLogDetail(row rowScanner) (audit.LocalRecord, error) {
	var (
		rec        audit.LocalRecord
		edgeAddr   sql.NullString
		resultHash sql.NullString
		txHash     sql.NullString
		msgType    sql.NullString
		signer     sql.NullString
		raw        rawNumbers
	)
	err := row.Scan(
		&rec.ID,
		&rec.TaskID,
		&edgeAddr,
		&rec.Stage,
		&raw.ts,
		&raw.cpuMs,
		&raw.memMBPeak,
		&raw.netKB,
		&raw.latencyMs,
		&resultHash,
		&rec.ContentHash,
		&rec.DetailPayload,
		&txHash,
		&raw.height,
		&msgType,
		&signer,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return audit.LocalRecord{}, err
		}
		return audit.LocalRecord{}, fmt.Errorf("scan log detail: %w", err)
	}

	rec.Timestamp = raw.integer("ts", raw.ts)
	rec.Metrics = audit.Metrics{
		CPUMs:     raw.integer("cpu_ms", raw.cpuMs),
		MemMBPeak: raw.integer("mem_mb_peak", raw.memMBPeak),
		NetKB:     raw.integer("net_kb", raw.netKB),
		LatencyMs: raw.integer("latency_ms", raw.latencyMs),
	}
	if raw.height.Valid {
		h := raw.integer("height", raw.height)
		rec.Height = &h
	}
	rec.Defect = raw.defect

	rec.EdgeAddr = edgeAddr.String
	rec.ResultHash = resultHash.String
	rec.TxHash = txHash.String
	rec.MsgType = msgType.String
	rec.Signer = signer.String
	return rec, nil
}

// rawNumbers holds the numeric columns of a log row as text. The first
// column that does not parse is recorded in defect.
type rawNumbers struct {
	ts, cpuMs, memMBPeak, netKB, latencyMs, height sql.NullString

	defect string
}

func (r *rawNumbers) integer(column string, v sql.NullString) int64 {
	if !v.Valid {
		r.fail("%s: missing value", column)
		return 0
	}
	n, err := strconv.ParseInt(v.String, 10, 64)
	if err != nil {
		r.fail("%s: invalid integer %q", column, v.String)
		return 0
	}
	return n
}

func (r *rawNumbers) fail(format string, args ...any) {
	if r.defect == "" {
		r.defect = fmt.Sprintf(format, args...)
	}
}
