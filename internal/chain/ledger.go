package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/tbaudit/internal/audit"
)

// DefaultModule is the chain module that stores log summaries.
const DefaultModule = "tbthree"

// DefaultListCommand lists the log summaries of one task.
const DefaultListCommand = "list-log-summary-by-task"

// LedgerReader lists a task's log summaries from the chain.
type LedgerReader struct {
	client  *Client
	module  string
	command string
}

// NewLedgerReader creates a reader. Empty module or command use the
// defaults.
func NewLedgerReader(client *Client, module, command string) *LedgerReader {
	if module == "" {
		module = DefaultModule
	}
	if command == "" {
		command = DefaultListCommand
	}
	return &LedgerReader{client: client, module: module, command: command}
}

// ListLogStages returns the task's log summaries in ledger order.
//
// Summaries of other tasks are dropped. Summaries whose fields cannot be
// parsed are returned with Defect set, so they are reported as malformed
// rather than failing the whole read.
func (r *LedgerReader) ListLogStages(ctx context.Context, taskID string) ([]audit.LedgerRecord, error) {
	out, err := r.client.Query(ctx, r.module, r.command, taskID)
	if err != nil {
		return nil, fmt.Errorf("list log stages: %w", err)
	}

	recs, err := DecodeLogSummaries(out)
	if err != nil {
		return nil, fmt.Errorf("list log stages: %w", err)
	}

	filtered := make([]audit.LedgerRecord, 0, len(recs))
	for _, rec := range recs {
		if rec.TaskID != "" && rec.TaskID != taskID {
			continue
		}
		filtered = append(filtered, rec)
	}
	sortByHeight(filtered)
	return filtered, nil
}

// sortByHeight stably orders records by block height when every record has
// one. Otherwise the query order is kept.
func sortByHeight(recs []audit.LedgerRecord) {
	for _, rec := range recs {
		if rec.Height <= 0 {
			return
		}
	}
	slices.SortStableFunc(recs, func(a, b audit.LedgerRecord) int {
		switch {
		case a.Height < b.Height:
			return -1
		case a.Height > b.Height:
			return 1
		}
		return 0
	})
}

// summaryListKeys are the envelope keys a list response may use.
var summaryListKeys = []string{"log", "logSummary"}

// DecodeLogSummaries decodes a log summary query response. The envelope is
// {"log": [...]} or {"logSummary": [...]}; an envelope with neither key
// holds no summaries.
func DecodeLogSummaries(data []byte) ([]audit.LedgerRecord, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode log summaries: %w", err)
	}

	var list []json.RawMessage
	for _, key := range summaryListKeys {
		raw, ok := envelope[key]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode log summaries: %q is not a list: %w", key, err)
		}
		break
	}

	recs := make([]audit.LedgerRecord, 0, len(list))
	for i, raw := range list {
		recs = append(recs, decodeSummary(i, raw))
	}
	return recs, nil
}

// summaryFields reads fields of one summary, recording the first defect.
type summaryFields struct {
	fields map[string]json.RawMessage
	defect string
}

func (s *summaryFields) fail(format string, args ...any) {
	if s.defect == "" {
		s.defect = fmt.Sprintf(format, args...)
	}
}

// lookup returns the first present key among aliases.
func (s *summaryFields) lookup(keys ...string) (string, json.RawMessage, bool) {
	for _, k := range keys {
		if raw, ok := s.fields[k]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return k, raw, true
		}
	}
	return "", nil, false
}

func (s *summaryFields) str(keys ...string) string {
	key, raw, ok := s.lookup(keys...)
	if !ok {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		s.fail("%s: expected a string, got %s", key, raw)
		return ""
	}
	return v
}

// integer reads an integer sent either as a JSON number or as a decimal string.
// Absent fields read as 0.
func (s *summaryFields) integer(keys ...string) int64 {
	key, raw, ok := s.lookup(keys...)
	if !ok {
		return 0
	}
	text := string(bytes.TrimSpace(raw))
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(raw, &text); err != nil {
			s.fail("%s: invalid string %s", key, raw)
			return 0
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return 0
		}
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		s.fail("%s: invalid integer %q", key, text)
		return 0
	}
	return n
}

func decodeSummary(index int, raw json.RawMessage) audit.LedgerRecord {
	s := &summaryFields{}
	if err := json.Unmarshal(raw, &s.fields); err != nil {
		var rec audit.LedgerRecord
		rec.Defect = fmt.Sprintf("summary #%d is not an object", index)
		return rec
	}

	rec := audit.LedgerRecord{
		LogStageEntry: audit.LogStageEntry{
			TaskID:    s.str("taskId", "task_id"),
			EdgeAddr:  s.str("edgeAddr", "edge_addr"),
			Stage:     s.str("stage"),
			Timestamp: s.integer("ts"),
			Metrics: audit.Metrics{
				CPUMs:     s.integer("cpuMs", "cpu_ms", "cpu"),
				MemMBPeak: s.integer("memMbPeak", "mem_mb_peak", "mem"),
				NetKB:     s.integer("netKb", "net_kb", "net"),
				LatencyMs: s.integer("latencyMs", "latency_ms", "latency"),
			},
			ResultHash:  s.str("resultHash", "result_hash"),
			ContentHash: s.str("logHash", "log_hash"),
		},
		TxHash:  s.str("txHash", "tx_hash", "txhash"),
		Height:  s.integer("height"),
		Signer:  s.str("signer", "creator"),
		MsgType: s.str("msgType", "msg_type"),
	}
	rec.Defect = s.defect
	return rec
}
