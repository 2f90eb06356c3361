// Package store provides SQLite-backed storage for the local side of the
// audit.
//
// The store holds:
//   - Log details: one row per observed task stage, with the canonical detail
//     JSON that was hashed and the resulting log hash
//   - Task results: the chosen result of each task, one row per task
//
// # Patterns
//
// Content identity:
//   - log_hash is the SHA-256 of detail_json, checked on write
//   - UNIQUE(task_id, stage, log_hash) makes writes insert-if-absent
//
// Deterministic reads:
//   - Log rows are returned ORDER BY id ASC (store order)
//   - Task ids are returned ORDER BY task_id COLLATE BINARY
//
// The store never edits detail_json or log_hash after insert. Only the
// ledger cross-reference columns are updated, by AttachLedgerRef.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
