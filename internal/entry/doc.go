// Package entry defines computed entries, the adjustment ledger embedded in
// them, and the errors raised when an entry cannot be corrected.
//
// The ledger is the provenance record of an entry: a two-level map from
// correction source to adjustment label to value. Ledger.Merge is the only
// write path and encodes the idempotence rule: recording the same value
// twice is a no-op, recording a different value is a conflict that leaves
// the ledger untouched.
package entry
