package audit

import (
	"fmt"

	"github.com/roach88/tbaudit/internal/canon"
)

// Metrics holds the resource measurements of one stage. Non-negative.
type Metrics struct {
	CPUMs     int64 `json:"cpu_ms" validate:"gte=0"`
	MemMBPeak int64 `json:"mem_mb_peak" validate:"gte=0"`
	NetKB     int64 `json:"net_kb" validate:"gte=0"`
	LatencyMs int64 `json:"latency_ms" validate:"gte=0"`
}

// LogStageEntry is one observed execution stage of one task.
type LogStageEntry struct {
	TaskID      string  `json:"task_id" validate:"required,max=128"`
	EdgeAddr    string  `json:"edge_addr,omitempty" validate:"max=128"`
	Stage       string  `json:"stage" validate:"required,stage"`
	Timestamp   int64   `json:"ts" validate:"gt=0"`
	Metrics     Metrics `json:"metrics"`
	ResultHash  string  `json:"result_hash,omitempty" validate:"omitempty,hash"`
	ContentHash string  `json:"content_hash" validate:"required,hash"`

	// Defect is set by an adapter that could not parse part of the source
	// row (e.g. a non-numeric timestamp). A record with a defect is malformed.
	Defect string `json:"-"`
}

// Detail returns the canonical detail object of the entry, the pre-image of
// its content hash. Key names are the cross-system wire names.
// Absent optional strings are encoded as "".
func (e LogStageEntry) Detail() canon.Object {
	return canon.Object{
		"taskId":      canon.String(e.TaskID),
		"edgeAddr":    canon.String(e.EdgeAddr),
		"stage":       canon.String(e.Stage),
		"ts":          canon.Int(e.Timestamp),
		"cpu_ms":      canon.Int(e.Metrics.CPUMs),
		"mem_mb_peak": canon.Int(e.Metrics.MemMBPeak),
		"net_kb":      canon.Int(e.Metrics.NetKB),
		"latency_ms":  canon.Int(e.Metrics.LatencyMs),
		"resultHash":  canon.String(e.ResultHash),
	}
}

// ComputeContentHash hashes the entry's canonical detail object.
func (e LogStageEntry) ComputeContentHash() (string, error) {
	return canon.ContentHash(e.Detail())
}

// NormalizedStage returns the entry's stage for alignment purposes.
func (e LogStageEntry) NormalizedStage() Stage {
	return NormalizeStage(e.Stage)
}

// LedgerRecord is a LogStageEntry as committed on the ledger.
// Immutable once observed.
type LedgerRecord struct {
	LogStageEntry
	TxHash  string `json:"tx_hash,omitempty"`
	Height  int64  `json:"height,omitempty" validate:"gte=0"`
	Signer  string `json:"signer,omitempty"`
	MsgType string `json:"msg_type,omitempty"`
}

// LocalRecord is a LogStageEntry as held by the local store.
type LocalRecord struct {
	ID int64 `json:"id"`
	LogStageEntry

	// DetailPayload is the raw detail JSON that was canonically encoded and
	// hashed when the row was written.
	DetailPayload string `json:"detail_json"`

	TxHash    string `json:"tx_hash,omitempty"`
	Height    *int64 `json:"height,omitempty"`
	Signer    string `json:"signer,omitempty"`
	MsgType   string `json:"msg_type,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// RecomputeHash re-derives the content hash from the row's own stored detail
// payload, independent of the stored ContentHash column.
func (r LocalRecord) RecomputeHash() (string, error) {
	if r.DetailPayload == "" {
		return "", fmt.Errorf("recompute hash: empty detail payload")
	}
	detail, err := canon.DecodeObject([]byte(r.DetailPayload))
	if err != nil {
		return "", fmt.Errorf("recompute hash: %w", err)
	}
	return canon.ContentHash(detail)
}

// DriftedColumns compares the row's columns with the entry its detail
// payload describes and returns the wire names of the columns that differ.
// An error means the payload cannot be read as an entry.
func (r LocalRecord) DriftedColumns() ([]string, error) {
	detail, err := canon.DecodeObject([]byte(r.DetailPayload))
	if err != nil {
		return nil, fmt.Errorf("drifted columns: %w", err)
	}
	want, err := EntryFromDetail(detail)
	if err != nil {
		return nil, fmt.Errorf("drifted columns: %w", err)
	}

	var drift []string
	check := func(name string, same bool) {
		if !same {
			drift = append(drift, name)
		}
	}
	got := r.LogStageEntry
	check("taskId", got.TaskID == want.TaskID)
	check("edgeAddr", got.EdgeAddr == want.EdgeAddr)
	check("stage", got.Stage == want.Stage)
	check("ts", got.Timestamp == want.Timestamp)
	check("cpu_ms", got.Metrics.CPUMs == want.Metrics.CPUMs)
	check("mem_mb_peak", got.Metrics.MemMBPeak == want.Metrics.MemMBPeak)
	check("net_kb", got.Metrics.NetKB == want.Metrics.NetKB)
	check("latency_ms", got.Metrics.LatencyMs == want.Metrics.LatencyMs)
	check("resultHash", got.ResultHash == want.ResultHash)
	return drift, nil
}

// NewLocalRecord builds a LocalRecord from an entry and the detail object
// that describes it. The detail is canonically encoded into DetailPayload and
// ContentHash is set to its hash. A nil detail uses entry.Detail().
func NewLocalRecord(entry LogStageEntry, detail canon.Object) (LocalRecord, error) {
	if detail == nil {
		detail = entry.Detail()
	}
	payload, err := canon.Marshal(detail)
	if err != nil {
		return LocalRecord{}, fmt.Errorf("new local record: %w", err)
	}
	entry.ContentHash = canon.Sum(payload)
	return LocalRecord{
		LogStageEntry: entry,
		DetailPayload: string(payload),
	}, nil
}

// EntryFromDetail reads an entry from a canonical detail object keyed by the
// wire names of Detail. Missing optional strings read as "". ContentHash is
// set to the hash of the whole object, including keys Detail does not know.
func EntryFromDetail(detail canon.Object) (LogStageEntry, error) {
	var e LogStageEntry
	var err error
	str := func(key string) string {
		v, ok := detail[key]
		if !ok || err != nil {
			return ""
		}
		switch s := v.(type) {
		case canon.String:
			return string(s)
		case canon.Null:
			return ""
		}
		err = fmt.Errorf("detail %q: expected a string, got %T", key, v)
		return ""
	}
	num := func(key string) int64 {
		v, ok := detail[key]
		if !ok {
			if err == nil {
				err = fmt.Errorf("detail %q: required", key)
			}
			return 0
		}
		n, isInt := v.(canon.Int)
		if !isInt {
			if err == nil {
				err = fmt.Errorf("detail %q: expected an integer, got %T", key, v)
			}
			return 0
		}
		return int64(n)
	}

	e.TaskID = str("taskId")
	e.EdgeAddr = str("edgeAddr")
	e.Stage = str("stage")
	e.ResultHash = str("resultHash")
	e.Timestamp = num("ts")
	e.Metrics = Metrics{
		CPUMs:     num("cpu_ms"),
		MemMBPeak: num("mem_mb_peak"),
		NetKB:     num("net_kb"),
		LatencyMs: num("latency_ms"),
	}
	if err != nil {
		return LogStageEntry{}, err
	}

	e.ContentHash, err = canon.ContentHash(detail)
	if err != nil {
		return LogStageEntry{}, err
	}
	return e, nil
}
