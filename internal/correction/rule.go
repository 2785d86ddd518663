package correction

import (
	"github.com/roach88/ecompat/internal/entry"
)

// Rule computes one energy correction for an entry.
//
// Rules are immutable after construction and safe for concurrent use by
// many goroutines; build each one once and share it between schemes.
type Rule interface {
	// Name is the adjustment label recorded in the entry ledger. Names are
	// unique within a rule set.
	Name() string

	// Description explains what the rule does, for audit output.
	Description() string

	// Correction returns the signed energy adjustment in eV. It returns an
	// INCOMPATIBLE_ENTRY error when the entry does not satisfy the rule's
	// preconditions.
	Correction(e *entry.Entry) (float64, error)
}

// StructureClassifier determines oxide and sulfide subtypes from an
// entry's structural data. It is only consulted for entries where
// HasStructure is true.
type StructureClassifier interface {
	// OxideType returns the oxide subtype ("oxide", "peroxide",
	// "superoxide", "ozonide", "hydroxide", ...) and the number of
	// oxygen bonds that subtype is counted by.
	OxideType(e *entry.Entry) (kind string, bonds float64, err error)

	// SulfideType returns the sulfide subtype ("sulfide", "polysulfide", ...).
	SulfideType(e *entry.Entry) (string, error)
}

// incompatible attaches the rule name to an INCOMPATIBLE_ENTRY error.
func incompatible(r Rule, e *entry.Entry, format string, args ...any) error {
	err := entry.NewIncompatibleError(format, args...)
	err.Rule = r.Name()
	err.EntryID = e.ID
	return err
}
