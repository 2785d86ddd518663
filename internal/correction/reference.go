package correction

import (
	"fmt"

	"github.com/roach88/ecompat/internal/entry"
)

// ReferenceTableRule pins the energy of known reference compounds (gases,
// elemental references) to tabulated values.
type ReferenceTableRule struct {
	name     string
	energies map[string]float64
}

// NewReferenceTableRule creates a gas correction for the named preset.
// energies maps reduced formula to energy per formula unit (eV).
func NewReferenceTableRule(preset string, energies map[string]float64) *ReferenceTableRule {
	table := make(map[string]float64, len(energies))
	for f, v := range energies {
		table[f] = v
	}
	return &ReferenceTableRule{
		name:     fmt.Sprintf("%s Gas Correction", preset),
		energies: table,
	}
}

// Name implements Rule.
func (r *ReferenceTableRule) Name() string { return r.name }

// Description implements Rule.
func (r *ReferenceTableRule) Description() string {
	return "Correct gas energies to obtain the right formation energies. " +
		"Note that this depends on calculations being run within the same input set."
}

// Correction returns table value × formula units − uncorrected energy for
// compositions whose reduced formula is in the table, 0 otherwise.
func (r *ReferenceTableRule) Correction(e *entry.Entry) (float64, error) {
	comp := e.Composition
	ref, ok := r.energies[comp.ReducedFormula()]
	if !ok {
		return 0, nil
	}
	return ref*comp.FormulaUnits() - e.UncorrectedEnergy, nil
}
