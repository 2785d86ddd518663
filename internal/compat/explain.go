package compat

import (
	"github.com/roach88/ecompat/internal/entry"
)

// Explanation is the audit record for one entry.
//
// Corrections follow the scheme's configuration order. A rejected entry
// has a nil CorrectedEnergy, every value 0, and Rejection set.
type Explanation struct {
	Compatibility     string                `json:"compatibility"`
	EntryID           string                `json:"entry_id,omitempty"`
	Formula           string                `json:"formula"`
	Warnings          []string              `json:"warnings,omitempty"`
	UncorrectedEnergy float64               `json:"uncorrected_energy"`
	CorrectedEnergy   *float64              `json:"corrected_energy"`
	Corrections       []ExplainedCorrection `json:"corrections"`
	Rejection         string                `json:"rejection,omitempty"`
}

// ExplainedCorrection is one scheme component and the value it contributed.
type ExplainedCorrection struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Value       float64 `json:"value"`
}

// Explain reports how ProcessEntry would correct e without mutating it.
//
// The ledger is validated first, exactly as given; the pipeline then runs
// on a deep copy.
func (c *Compatibility) Explain(e *entry.Entry) Explanation {
	ex := Explanation{
		Compatibility:     c.name,
		EntryID:           e.ID,
		Formula:           e.Composition.ReducedFormula(),
		UncorrectedEnergy: e.UncorrectedEnergy,
	}
	if w := CheckLedger(e); w != nil {
		ex.Warnings = append(ex.Warnings, w.String())
	}

	clone := e.Clone()
	if c.clean {
		clone.Reset()
	}
	applied, err := c.apply(clone)
	if err != nil {
		ex.Rejection = err.Error()
	} else {
		energy := clone.Energy()
		ex.CorrectedEnergy = &energy
	}

	for _, comp := range c.scheme.Components() {
		ex.Corrections = append(ex.Corrections, ExplainedCorrection{
			Name:        comp.Name,
			Description: comp.Description,
			Value:       applied.Value(comp.Name),
		})
	}
	return ex
}
