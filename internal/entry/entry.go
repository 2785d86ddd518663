package entry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/ecompat/internal/chem"
)

// Entry pairs a composition with a computed energy and the correction
// bookkeeping attached to it.
//
// UncorrectedEnergy is set at creation and never touched by the engine.
// Correction and Adjustments are engine-owned: they change only through
// ApplyAdjustments or Reset. Parameters and Data are read by rules and
// never written.
type Entry struct {
	ID                string           `json:"entry_id,omitempty"`
	Composition       chem.Composition `json:"composition"`
	UncorrectedEnergy float64          `json:"energy"`
	Correction        float64          `json:"correction"`
	Adjustments       Ledger           `json:"energy_adjustments,omitempty"`
	Parameters        map[string]any   `json:"parameters,omitempty"`
	Data              map[string]any   `json:"data,omitempty"`

	// Structure is opaque structural data. Its presence enables structural
	// classification in rules that support it.
	Structure any `json:"structure,omitempty"`
}

// New creates an entry with no corrections applied.
func New(id string, comp chem.Composition, uncorrectedEnergy float64) *Entry {
	return &Entry{
		ID:                id,
		Composition:       comp,
		UncorrectedEnergy: uncorrectedEnergy,
		Parameters:        map[string]any{},
		Data:              map[string]any{},
	}
}

// Energy returns the corrected energy.
func (e *Entry) Energy() float64 {
	return e.UncorrectedEnergy + e.Correction
}

// EnergyPerAtom returns Energy divided by the number of atoms.
func (e *Entry) EnergyPerAtom() float64 {
	return e.Energy() / e.Composition.NumAtoms()
}

// CorrectionPerAtom returns Correction divided by the number of atoms.
func (e *Entry) CorrectionPerAtom() float64 {
	return e.Correction / e.Composition.NumAtoms()
}

// HasStructure reports whether structural data is attached.
func (e *Entry) HasStructure() bool {
	return e.Structure != nil
}

// Reset clears every applied correction and the ledger.
func (e *Entry) Reset() {
	e.Correction = 0
	e.Adjustments = nil
}

// ApplyAdjustments records adjustments under source and adds every newly
// recorded value to Correction.
//
// Re-applying an identical (source, label, value) is a no-op. If any label
// is already recorded with a different value the entry is left untouched
// and a CONFLICTING_CORRECTION error is returned.
func (e *Entry) ApplyAdjustments(source string, adjustments Adjustments) error {
	added, err := e.Adjustments.Merge(source, adjustments)
	if err != nil {
		var ce *CompatibilityError
		if errors.As(err, &ce) {
			ce.EntryID = e.ID
		}
		return err
	}
	e.Correction += added
	return nil
}

// Clone returns a deep copy. Structure is shared since it is never mutated.
func (e *Entry) Clone() *Entry {
	out := *e
	out.Adjustments = e.Adjustments.Clone()
	out.Parameters = cloneMap(e.Parameters)
	out.Data = cloneMap(e.Data)
	return &out
}

// String returns a short description for logs and diagnostics.
func (e *Entry) String() string {
	if e.ID != "" {
		return fmt.Sprintf("%s (%s)", e.ID, e.Composition.ReducedFormula())
	}
	return e.Composition.ReducedFormula()
}

// UnmarshalJSON accepts "formula" as an alternative to "composition".
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	var aux struct {
		plain
		Formula string `json:"formula,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = Entry(aux.plain)
	if e.Composition.Len() == 0 && aux.Formula != "" {
		comp, err := chem.Parse(aux.Formula)
		if err != nil {
			return err
		}
		e.Composition = comp
	}
	if e.Composition.Len() == 0 {
		return fmt.Errorf("entry %q: composition or formula is required", e.ID)
	}
	return nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case map[string]float64:
		out := make(map[string]float64, len(val))
		for k, f := range val {
			out[k] = f
		}
		return out
	default:
		return v
	}
}
