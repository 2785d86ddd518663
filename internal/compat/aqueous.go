package compat

import (
	"math"

	"github.com/roach88/ecompat/internal/entry"
)

// AqueousSource is the ledger source of the aqueous free-energy scheme.
const AqueousSource = "MaterialsProjectAqueousCompatibility"

// Labels recorded by the aqueous free-energy scheme.
const (
	LabelFitH2H2O = "Fit H2 and H2O energy to experiment"
	LabelEntropy  = "Compound entropy at room temperature"
	LabelHydrate  = "Hydrate energy adjustment"
)

// MuH2O is the experimental formation free energy of water (eV/H2O).
const MuH2O = -2.4583

// AqueousFreeEnergy converts solid-phase corrected energies to free
// energies usable alongside aqueous species.
//
// H2 and H2O are pinned to energies fitted so that water's formation free
// energy equals MuH2O. Molecular-like compounds receive −TΔS at room
// temperature. Hydrates lose the free energy of their embedded water.
//
// It depends on the corrected energies of O2 and H2O produced by the solid
// scheme, so it must run after it without cleaning.
type AqueousFreeEnergy struct {
	// H2OEnergy is the DFT energy of H2O (eV/H2O).
	H2OEnergy float64
	// O2Energy is the corrected energy of O2 (eV/atom).
	O2Energy float64
	// PreviousCorrectionPerH2O is the total solid correction applied to
	// H2O (eV/H2O).
	PreviousCorrectionPerH2O float64
	// Entropies maps reduced formula to −TΔS at 298 K (eV/atom).
	Entropies map[string]float64

	h2Energy float64
	fitH2O   float64
	source   string
}

// NewAqueousFreeEnergy creates the scheme with the Materials Project
// reference energies.
func NewAqueousFreeEnergy() *AqueousFreeEnergy {
	return NewAqueousFreeEnergyWith(-14.8852, -4.9276, -0.70229, map[string]float64{
		"O2":  0.316731,
		"N2":  0.295729,
		"F2":  0.313025,
		"Cl2": 0.344373,
		"Br":  0.235039,
		"Hg":  0.234421,
		"H2O": 0.215891,
	})
}

// NewAqueousFreeEnergyWith creates the scheme from explicit reference
// energies. entropies must contain O2 and H2O.
func NewAqueousFreeEnergyWith(h2oEnergy, o2Energy, previousPerH2O float64, entropies map[string]float64) *AqueousFreeEnergy {
	s := &AqueousFreeEnergy{
		H2OEnergy:                h2oEnergy,
		O2Energy:                 o2Energy,
		PreviousCorrectionPerH2O: previousPerH2O,
		Entropies:                make(map[string]float64, len(entropies)),
		source:                   AqueousSource,
	}
	for k, v := range entropies {
		s.Entropies[k] = v
	}

	sH2O := s.Entropies["H2O"]
	sO2 := s.Entropies["O2"]
	s.h2Energy = round6(0.5 * ((h2oEnergy - sH2O) - (o2Energy - sO2) - MuH2O))
	s.fitH2O = round6((2*s.h2Energy + (o2Energy - sO2) + MuH2O) / 3)
	return s
}

// H2Energy returns the fitted free energy of H2 (eV/atom).
func (s *AqueousFreeEnergy) H2Energy() float64 { return s.h2Energy }

// FitH2OEnergy returns the fitted free energy of H2O (eV/atom).
func (s *AqueousFreeEnergy) FitH2OEnergy() float64 { return s.fitH2O }

// Components implements Scheme.
func (s *AqueousFreeEnergy) Components() []Component {
	return []Component{
		{Name: LabelFitH2H2O, Description: "Pins H2 and H2O energies so the formation free energy of water matches experiment."},
		{Name: LabelEntropy, Description: "Adds -TdS at 298 K to compounds that are molecular at room temperature."},
		{Name: LabelHydrate, Description: "Removes the free energy and prior corrections of water embedded in hydrates."},
	}
}

// Corrections implements Scheme.
//
// The pinning adjustment is computed against the uncorrected energy plus
// every correction recorded by other sources, so re-running the scheme
// reproduces its own ledger values exactly.
func (s *AqueousFreeEnergy) Corrections(e *entry.Entry) (entry.Adjustments, error) {
	comp := e.Composition
	rform := comp.ReducedFormula()
	natoms := comp.NumAtoms()

	var fit, entropy, hydrate float64
	switch {
	case rform == "H2":
		fit = s.h2Energy*natoms - s.baseEnergy(e)
	case rform == "H2O":
		fit = s.fitH2O*natoms - s.baseEnergy(e)
	default:
		if v, ok := s.Entropies[rform]; ok {
			entropy = -v * natoms
		}
	}

	if rform != "H2O" {
		nH2O := math.Trunc(math.Min(comp.Count("H")/2, comp.Count("O")))
		if nH2O > 0 {
			hydrate = -s.PreviousCorrectionPerH2O - MuH2O*nH2O
		}
	}

	var out entry.Adjustments
	for _, adj := range []entry.Adjustment{
		{Label: LabelFitH2H2O, Value: fit},
		{Label: LabelEntropy, Value: entropy},
		{Label: LabelHydrate, Value: hydrate},
	} {
		if adj.Value != 0 {
			out = append(out, adj)
		}
	}
	return out, nil
}

// baseEnergy ignores corrections missing from the ledger; those are
// already reported as provenance warnings.
func (s *AqueousFreeEnergy) baseEnergy(e *entry.Entry) float64 {
	return e.UncorrectedEnergy + e.Adjustments.TotalExcept(s.source)
}

// NewAqueousCompatibility creates the aqueous free-energy engine. It does
// not clean entries unless WithClean(true) is passed.
func NewAqueousCompatibility(opts ...Option) *Compatibility {
	return New(AqueousSource, NewAqueousFreeEnergy(), append([]Option{WithClean(false)}, opts...)...)
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
