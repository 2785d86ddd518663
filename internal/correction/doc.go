// Package correction implements energy correction rules.
//
// A Rule is a pure function of (rule state, entry): it returns a signed
// adjustment or an INCOMPATIBLE_ENTRY error. Rules hold their reference
// tables and are never mutated after construction, so a single instance can
// be shared by any number of rule sets and goroutines. Sharing is explicit:
// callers construct a rule once and pass the same pointer around.
//
// Concrete rules:
//   - ReferenceTableRule: pins gas/elemental reference energies
//   - AnionRule: oxide, peroxide, superoxide, ozonide and sulfide corrections
//   - HubbardRule: GGA/GGA+U mixing with U-value consistency checks
//   - InputMethodRule: pseudopotential consistency check (never corrects)
//   - AqueousRule: aqueous reference energies and hydrate penalty
package correction
