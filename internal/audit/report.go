package audit

import "fmt"

// Status is the classification of one reconciliation pairing.
type Status string

const (
	// StatusMatch: ledger hash, stored local hash and recomputed local hash
	// all agree.
	StatusMatch Status = "match"

	// StatusMismatch: a local counterpart exists but its content diverged.
	StatusMismatch Status = "mismatch"

	// StatusMissingLocal: the ledger entry has no local counterpart.
	StatusMissingLocal Status = "missingLocal"

	// StatusOrphanLocal: the local row has no ledger entry.
	StatusOrphanLocal Status = "orphanLocal"
)

// Reason explains a non-match classification.
type Reason string

const (
	// ReasonStaleHash: the stored local hash matched but the detail payload
	// no longer hashes to it (payload altered after the hash was written).
	ReasonStaleHash Reason = "stale_hash"

	// ReasonContentDrift: only a same-stage local row exists, with a
	// different content hash.
	ReasonContentDrift Reason = "content_drift"

	// ReasonPayloadUnreadable: the detail payload could not be decoded, or
	// does not carry the fields of a log stage entry.
	ReasonPayloadUnreadable Reason = "payload_unreadable"

	// ReasonColumnDrift: the payload still hashes to the ledger hash but the
	// row's columns no longer describe it.
	ReasonColumnDrift Reason = "column_drift"

	// ReasonDuplicateHash: another local row of the task already carries
	// this content hash.
	ReasonDuplicateHash Reason = "duplicate_hash"
)

// Side identifies one of the two audited sources.
type Side string

const (
	SideLedger Side = "ledger"
	SideLocal  Side = "local"
)

// ParseSide parses a side name.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideLedger, SideLocal:
		return Side(s), nil
	}
	return "", fmt.Errorf("unknown source %q: must be %q or %q", s, SideLedger, SideLocal)
}

// Item is one reconciliation outcome.
type Item struct {
	Stage     string `json:"stage"`
	Timestamp int64  `json:"ts"`
	Status    Status `json:"status"`
	Reason    Reason `json:"reason,omitempty"`

	LedgerHash     string `json:"ledger_hash,omitempty"`
	LocalHash      string `json:"local_hash,omitempty"`
	RecomputedHash string `json:"recomputed_hash,omitempty"`

	Ledger *LedgerRecord `json:"ledger,omitempty"`
	Local  *LocalRecord  `json:"local,omitempty"`
}

// MalformedRecord is a fetched record that failed shape validation. It is
// excluded from pairing and reported on its own.
type MalformedRecord struct {
	Side   Side   `json:"side"`
	Key    string `json:"key"`
	Stage  string `json:"stage,omitempty"`
	Reason string `json:"reason"`
}

// Summary holds the per-status counts of a report.
// Matches + Mismatches + MissingLocal == LedgerRows. OrphanLocal is
// additional.
type Summary struct {
	LedgerRows   int `json:"ledger_rows"`
	LocalRows    int `json:"local_rows"`
	Matches      int `json:"matches"`
	Mismatches   int `json:"mismatches"`
	MissingLocal int `json:"missing_local"`
	OrphanLocal  int `json:"orphan_local"`
	Malformed    int `json:"malformed"`
}

// Report is the result of reconciling one task.
type Report struct {
	TaskID    string            `json:"task_id"`
	Items     []Item            `json:"items"`
	Malformed []MalformedRecord `json:"malformed"`
	Summary   Summary           `json:"summary"`
}

// NewReport returns an empty report for taskID with non-nil slices.
func NewReport(taskID string) *Report {
	return &Report{
		TaskID:    taskID,
		Items:     []Item{},
		Malformed: []MalformedRecord{},
	}
}

// RecomputeSummary derives the summary from the report's items and
// malformed records.
func (r *Report) RecomputeSummary() Summary {
	var s Summary
	for _, item := range r.Items {
		if item.Ledger != nil {
			s.LedgerRows++
		}
		if item.Local != nil {
			s.LocalRows++
		}
		switch item.Status {
		case StatusMatch:
			s.Matches++
		case StatusMismatch:
			s.Mismatches++
		case StatusMissingLocal:
			s.MissingLocal++
		case StatusOrphanLocal:
			s.OrphanLocal++
		}
	}
	s.Malformed = len(r.Malformed)
	return s
}

// Finalize sets Summary from the items.
func (r *Report) Finalize() {
	r.Summary = r.RecomputeSummary()
}

// Validate checks the report's internal consistency.
func (r *Report) Validate() error {
	want := r.RecomputeSummary()
	if r.Summary != want {
		return fmt.Errorf("summary %+v does not match items %+v", r.Summary, want)
	}
	if got := want.Matches + want.Mismatches + want.MissingLocal; got != want.LedgerRows {
		return fmt.Errorf("matches+mismatches+missing_local = %d, ledger rows = %d", got, want.LedgerRows)
	}

	seenOrphan := false
	for i, item := range r.Items {
		switch item.Status {
		case StatusOrphanLocal:
			if item.Ledger != nil || item.Local == nil {
				return fmt.Errorf("item %d: orphan must carry only a local record", i)
			}
			seenOrphan = true
		case StatusMissingLocal:
			if item.Ledger == nil || item.Local != nil {
				return fmt.Errorf("item %d: missing_local must carry only a ledger record", i)
			}
		case StatusMatch, StatusMismatch:
			if item.Ledger == nil || item.Local == nil {
				return fmt.Errorf("item %d: %s must carry both records", i, item.Status)
			}
		default:
			return fmt.Errorf("item %d: unknown status %q", i, item.Status)
		}
		if item.Status != StatusOrphanLocal && seenOrphan {
			return fmt.Errorf("item %d: ledger item after orphan items", i)
		}
	}
	return nil
}

// HasAnomalies reports whether anything other than matches was found.
func (r *Report) HasAnomalies() bool {
	s := r.Summary
	return s.Mismatches > 0 || s.MissingLocal > 0 || s.OrphanLocal > 0 || s.Malformed > 0
}

// Listing is a degraded, single-source view of a task. It is NOT a
// reconciliation: only one side was read.
type Listing struct {
	TaskID    string            `json:"task_id"`
	Source    Side              `json:"source"`
	Degraded  bool              `json:"degraded"`
	Ledger    []LedgerRecord    `json:"ledger,omitempty"`
	Local     []LocalRecord     `json:"local,omitempty"`
	Malformed []MalformedRecord `json:"malformed"`
}
