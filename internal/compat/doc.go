// Package compat implements the compatibility engine.
//
// A Compatibility combines a Scheme (an ordered set of corrections) with
// the ledger protocol that makes processing idempotent:
//
//  1. clean mode resets the entry's correction and ledger
//  2. the ledger is checked against the entry's correction; a mismatch
//     is logged as a warning and processing continues
//  3. the scheme computes its adjustments; an incompatible entry is rejected
//  4. adjustments are merged under the engine's name; a conflicting label
//     rejects the entry before anything is written
//
// Rejections never cross ProcessEntries: rejected entries are dropped and
// survivors keep their input order.
//
// Explain re-runs the same pipeline on a private copy, so explanations
// always agree with ProcessEntry.
package compat
