// Package audit defines the records compared by the reconciliation engine
// and the report it returns.
//
// A LogStageEntry is one observed execution stage of one task. It exists in
// two copies: a LedgerRecord read from the chain (authoritative, immutable)
// and a LocalRecord read from the local store (mutable, never trusted without
// recomputing its content hash).
//
// A Report is a pure data container. Its Summary is always derived from its
// Items via RecomputeSummary; it is never assembled by hand.
package audit
