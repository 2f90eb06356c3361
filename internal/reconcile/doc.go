// Package reconcile implements the ledger/local audit reconciliation engine.
//
// The engine reads one task's log stages from the ledger (authoritative) and
// from the local store, pairs them, and classifies every pairing:
//
//   - match: ledger hash, stored local hash and the hash recomputed from the
//     row's own detail payload all agree
//   - mismatch: a local counterpart exists but its content diverged
//   - missingLocal: the ledger entry has no local counterpart
//   - orphanLocal: the local row has no ledger entry
//
// PAIRING:
//
// Local rows are indexed by content hash; the first row wins and later rows
// carrying the same hash become orphans. Pairing runs in two passes so a
// same-stage fallback never takes a row that another ledger entry matches by
// hash:
//
//  1. Exact: a ledger entry takes the unconsumed local row with its hash.
//  2. Stage: a ledger entry still unpaired takes the first unconsumed local
//     row of the same stage, in store order, and is a mismatch.
//
// Remaining local rows are orphans, in store order.
//
// Classify is a pure function of the two snapshots. Reports of identical
// snapshots serialise to identical bytes.
//
// FAILURE:
//
// If either source cannot be read within its timeout, Reconcile returns a
// *SourceUnavailableError and no report. A half-read is never presented as
// an audit. ListSource offers an explicitly labelled single-source listing
// for callers that want to show something anyway.
package reconcile
