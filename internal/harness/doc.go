// Package harness runs conformance scenarios against the compatibility
// engine.
//
// A scenario is a YAML file naming a preset, a set of entries and an
// ordered list of runs. Each run builds a scheme by name and processes
// the entries that survived the previous run, exactly as a caller chaining
// engines would. Every run is recorded in a fresh in-memory store with
// deterministic run IDs, so stored history can be asserted on too.
//
// Scenario outcomes are checked three ways:
//   - expect clauses: per-entry acceptance, rejection code, correction,
//     energy and ledger values (subset match)
//   - assertions: whole-run properties such as accepted order, ledger
//     consistency, idempotence of the last run and explain agreement
//   - golden files: the canonical JSON trace of every run, compared with
//     goldie against testdata/golden/<name>.golden
//
// Regenerate golden files with:
//
//	go test ./internal/harness -update
package harness
