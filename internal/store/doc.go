// Package store provides SQLite-backed durable storage for compatibility
// runs.
//
// The store is an append-only audit log with:
//   - Runs: one record per batch, identified by a UUIDv7
//   - Results: the outcome for each entry of a run
//   - Adjustments: the ledger rows of each accepted entry
//
// # Idempotency
//
// Results are UNIQUE(run_id, entry_id) and adjustments are
// UNIQUE(run_id, entry_id, source, label). Writes use ON CONFLICT DO
// NOTHING, so recording the same outcome twice is a no-op.
//
// # Ordering
//
// Queries order by seq, then id. created_at is informational and never
// used for ordering.
//
// # Connection
//
// Pragmas travel in the connection string (journal_mode=WAL,
// synchronous=NORMAL, busy_timeout=5000, foreign_keys=on) so every pooled
// connection gets them.
//
// # Schema Versions
//
// PRAGMA user_version records the last applied migration. Open applies
// pending migrations in order and refuses databases written by a newer
// schema with ErrSchemaTooNew.
//
// Ledger fingerprints are computed by package canonical.
package store
