package correction

import (
	"fmt"

	"github.com/roach88/ecompat/internal/entry"
)

// CompatType selects how GGA and GGA+U calculations may be mixed.
type CompatType string

const (
	// CompatGGA excludes every GGA+U entry: all Hubbard U values must be 0
	// and no U correction is applied.
	CompatGGA CompatType = "GGA"

	// CompatAdvanced mixes GGA and GGA+U entries. Entries that should have
	// been run with +U (e.g. Fe oxides) but were not are excluded.
	CompatAdvanced CompatType = "Advanced"
)

// Run types an entry may declare in parameters["run_type"].
const (
	RunTypeGGA  = "GGA"
	RunTypeGGAU = "GGA+U"
)

// HubbardTable maps the most electronegative element of a composition to
// per-element values (Hubbard U settings or U corrections).
type HubbardTable map[string]map[string]float64

// HubbardRule checks that an entry was run with the Hubbard U values the
// input set prescribes and applies the GGA/GGA+U mixing correction.
//
// Entry.Parameters["hubbards"] holds the non-zero U values used in the
// calculation, e.g. {"Fe": 5.3}; a missing key means a plain GGA run.
type HubbardRule struct {
	name        string
	compatType  CompatType
	settings    HubbardTable
	corrections HubbardTable
}

// NewHubbardRule creates the mixing rule for the named preset. settings is
// the input set's expected U values; corrections the per-atom energy
// corrections. Both are ignored under CompatGGA.
func NewHubbardRule(preset string, compatType CompatType, settings, corrections HubbardTable) (*HubbardRule, error) {
	r := &HubbardRule{
		name:        fmt.Sprintf("%s %s Correction", preset, compatType),
		compatType:  compatType,
		settings:    HubbardTable{},
		corrections: HubbardTable{},
	}
	switch compatType {
	case CompatAdvanced:
		r.settings = copyHubbard(settings)
		r.corrections = copyHubbard(corrections)
	case CompatGGA:
	default:
		return nil, fmt.Errorf("invalid compat type %q: must be %q or %q", compatType, CompatGGA, CompatAdvanced)
	}
	return r, nil
}

// Name implements Rule.
func (r *HubbardRule) Name() string { return r.name }

// Description implements Rule.
func (r *HubbardRule) Description() string {
	return "This class implements the GGA/GGA+U mixing scheme, which allows mixing of entries. " +
		"Entry.parameters must contain a \"hubbards\" key which is a dict of all non-zero Hubbard U values used in the calculation."
}

// Correction implements Rule.
func (r *HubbardRule) Correction(e *entry.Entry) (float64, error) {
	runType := RunTypeGGA
	if rt, ok := entry.String(e.Parameters, "run_type"); ok && rt != "" {
		runType = rt
	}
	if runType != RunTypeGGA && runType != RunTypeGGAU {
		return 0, incompatible(r, e, "invalid run type %q", runType)
	}

	calcU, _ := entry.Floats(e.Parameters, "hubbards")
	comp := e.Composition

	mostElectroneg := comp.MostElectronegative()
	ucorr := r.corrections[mostElectroneg]
	usettings := r.settings[mostElectroneg]

	correction := 0.0
	for _, el := range comp.Elements() {
		if calcU[el] != usettings[el] {
			return 0, incompatible(r, e, "invalid U value of %g on %s (expected %g)", calcU[el], el, usettings[el])
		}
		if v, ok := ucorr[el]; ok {
			correction += v * comp.Count(el)
		}
	}
	return correction, nil
}

func copyHubbard(t HubbardTable) HubbardTable {
	out := make(HubbardTable, len(t))
	for k, inner := range t {
		out[k] = copyTable(inner)
	}
	return out
}
