package correction

import (
	"fmt"
	"math"

	"github.com/roach88/ecompat/internal/entry"
)

// HydrateEnergyPerWater is the energy (eV) added per embedded water
// molecule, min(H/2, O), for every composition other than H2O.
const HydrateEnergyPerWater = 0.5 * 2.46

// AqueousRule applies aqueous-phase reference energies for elements and
// H2O.
type AqueousRule struct {
	name     string
	source   string
	energies map[string]float64
}

// NewAqueousRule creates the aqueous correction for the named preset.
// source is the ledger source its engine records under. energies maps
// reduced formula to energy per formula unit (eV).
func NewAqueousRule(preset, source string, energies map[string]float64) *AqueousRule {
	return &AqueousRule{
		name:     fmt.Sprintf("%s Aqueous Correction", preset),
		source:   source,
		energies: copyTable(energies),
	}
}

// Name implements Rule.
func (r *AqueousRule) Name() string { return r.name }

// Description implements Rule.
func (r *AqueousRule) Description() string {
	return "This class implements aqueous phase compound corrections for elements and H2O."
}

// pinTolerance absorbs the rounding left when a previous pin is backed out
// of the entry's correction.
const pinTolerance = 1e-9

// Correction implements Rule.
//
// H2 and H2O anchor the scale: their correction pins the corrected energy
// to the table value regardless of corrections already applied.
func (r *AqueousRule) Correction(e *entry.Entry) (float64, error) {
	comp := e.Composition
	rform := comp.ReducedFormula()

	correction := 0.0
	if ref, ok := r.energies[rform]; ok {
		if rform == "H2" || rform == "H2O" {
			correction = r.pin(e, ref*comp.FormulaUnits())
		} else {
			correction += ref * comp.FormulaUnits()
		}
	}
	if rform != "H2O" {
		correction += HydrateEnergyPerWater * math.Min(comp.Count("H")/2, comp.Count("O"))
	}
	return correction, nil
}

// pin returns the correction that brings e to target.
//
// When the rule's own source already recorded a pin, that run's values are
// backed out of Correction first, so a re-run without cleaning reproduces
// the recorded pin instead of pinning the pinned entry.
func (r *AqueousRule) pin(e *entry.Entry, target float64) float64 {
	prev, ok := e.Adjustments.Lookup(r.source, r.name)
	if !ok {
		return target - e.UncorrectedEnergy - e.Correction
	}
	own := 0.0
	for _, label := range e.Adjustments.Labels(r.source) {
		own += e.Adjustments[r.source][label]
	}
	v := target - e.UncorrectedEnergy - (e.Correction - own)
	if math.Abs(v-prev) <= pinTolerance {
		return prev
	}
	return v
}
