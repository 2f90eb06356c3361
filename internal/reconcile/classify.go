package reconcile

import (
	"github.com/roach88/tbaudit/internal/audit"
)

// localPool tracks which local rows are still available for pairing.
type localPool struct {
	rows      []audit.LocalRecord
	byHash    map[string]int
	consumed  []bool
	duplicate []bool
}

func newLocalPool(rows []audit.LocalRecord) *localPool {
	p := &localPool{
		rows:      rows,
		byHash:    make(map[string]int, len(rows)),
		consumed:  make([]bool, len(rows)),
		duplicate: make([]bool, len(rows)),
	}
	for i, r := range rows {
		if _, ok := p.byHash[r.ContentHash]; ok {
			// First row wins. A duplicate never pairs.
			p.duplicate[i] = true
			continue
		}
		p.byHash[r.ContentHash] = i
	}
	return p
}

// takeHash consumes the row indexed under hash, if unconsumed.
func (p *localPool) takeHash(hash string) (int, bool) {
	i, ok := p.byHash[hash]
	if !ok || p.consumed[i] {
		return 0, false
	}
	p.consumed[i] = true
	return i, true
}

// takeStage consumes the first unconsumed row of stage in store order.
func (p *localPool) takeStage(stage audit.Stage) (int, bool) {
	for i, r := range p.rows {
		if p.consumed[i] || p.duplicate[i] {
			continue
		}
		if r.NormalizedStage() == stage {
			p.consumed[i] = true
			return i, true
		}
	}
	return 0, false
}

// Classify reconciles one task's ledger and local snapshots.
//
// Malformed records of either side are listed in Report.Malformed and take
// no part in pairing. Items follow ledger order, then orphans in local
// order. The summary is computed from the items.
func Classify(taskID string, ledger []audit.LedgerRecord, local []audit.LocalRecord) *audit.Report {
	report := audit.NewReport(taskID)

	validLedger := make([]audit.LedgerRecord, 0, len(ledger))
	for i, r := range ledger {
		if err := audit.ValidateLedgerRecord(r, taskID); err != nil {
			report.Malformed = append(report.Malformed, audit.MalformedLedger(r, i, err))
			continue
		}
		validLedger = append(validLedger, r)
	}

	validLocal := make([]audit.LocalRecord, 0, len(local))
	for _, r := range local {
		if err := audit.ValidateLocalRecord(r, taskID); err != nil {
			report.Malformed = append(report.Malformed, audit.MalformedLocal(r, err))
			continue
		}
		validLocal = append(validLocal, r)
	}

	pool := newLocalPool(validLocal)
	items := make([]*audit.Item, len(validLedger))

	// Exact pass.
	for i := range validLedger {
		if j, ok := pool.takeHash(validLedger[i].ContentHash); ok {
			items[i] = pairByHash(validLedger[i], validLocal[j])
		}
	}

	// Stage pass.
	for i := range validLedger {
		if items[i] != nil {
			continue
		}
		if j, ok := pool.takeStage(validLedger[i].NormalizedStage()); ok {
			items[i] = pairByStage(validLedger[i], validLocal[j])
			continue
		}
		items[i] = missingLocal(validLedger[i])
	}

	for _, item := range items {
		report.Items = append(report.Items, *item)
	}

	for j, r := range validLocal {
		if pool.consumed[j] {
			continue
		}
		item := orphan(r)
		if pool.duplicate[j] {
			item.Reason = audit.ReasonDuplicateHash
		} else if drift, err := r.DriftedColumns(); err == nil && len(drift) > 0 {
			item.Reason = audit.ReasonColumnDrift
		}
		report.Items = append(report.Items, item)
	}

	report.Finalize()
	return report
}

// pairByHash classifies a ledger record against the local row that carries
// its hash. The row's payload must still hash to it and the row's columns
// must still describe the payload.
func pairByHash(l audit.LedgerRecord, r audit.LocalRecord) *audit.Item {
	item := &audit.Item{
		Stage:      l.Stage,
		Timestamp:  l.Timestamp,
		LedgerHash: l.ContentHash,
		LocalHash:  r.ContentHash,
		Ledger:     &l,
		Local:      &r,
	}
	recomputed, err := r.RecomputeHash()
	switch {
	case err != nil:
		item.Status = audit.StatusMismatch
		item.Reason = audit.ReasonPayloadUnreadable
	case recomputed == l.ContentHash:
		item.RecomputedHash = recomputed
		item.Status, item.Reason = checkColumns(r)
	default:
		item.Status = audit.StatusMismatch
		item.Reason = audit.ReasonStaleHash
		item.RecomputedHash = recomputed
	}
	return item
}

// checkColumns classifies a row whose payload hash is confirmed.
func checkColumns(r audit.LocalRecord) (audit.Status, audit.Reason) {
	drift, err := r.DriftedColumns()
	switch {
	case err != nil:
		return audit.StatusMismatch, audit.ReasonPayloadUnreadable
	case len(drift) > 0:
		return audit.StatusMismatch, audit.ReasonColumnDrift
	}
	return audit.StatusMatch, ""
}

// pairByStage pairs a ledger record with a same-stage row of another hash.
func pairByStage(l audit.LedgerRecord, r audit.LocalRecord) *audit.Item {
	item := &audit.Item{
		Stage:      l.Stage,
		Timestamp:  l.Timestamp,
		Status:     audit.StatusMismatch,
		Reason:     audit.ReasonContentDrift,
		LedgerHash: l.ContentHash,
		LocalHash:  r.ContentHash,
		Ledger:     &l,
		Local:      &r,
	}
	if recomputed, err := r.RecomputeHash(); err == nil {
		item.RecomputedHash = recomputed
	}
	return item
}

func missingLocal(l audit.LedgerRecord) *audit.Item {
	return &audit.Item{
		Stage:      l.Stage,
		Timestamp:  l.Timestamp,
		Status:     audit.StatusMissingLocal,
		LedgerHash: l.ContentHash,
		Ledger:     &l,
	}
}

func orphan(r audit.LocalRecord) audit.Item {
	item := audit.Item{
		Stage:     r.Stage,
		Timestamp: r.Timestamp,
		Status:    audit.StatusOrphanLocal,
		LocalHash: r.ContentHash,
		Local:     &r,
	}
	if recomputed, err := r.RecomputeHash(); err == nil {
		item.RecomputedHash = recomputed
	}
	return item
}
