// Package config loads correction presets: the reference-energy tables,
// anion corrections, Hubbard U tables and pseudopotential expectations a
// compatibility scheme is built from.
//
// Presets are plain data. Files may be YAML, CUE or JSON; field names
// follow the established compatibility file layout (Name, Advanced,
// OxideCorrections, ...).
package config

// Preset is one named correction configuration.
type Preset struct {
	// Name prefixes every rule name built from this preset (e.g. "MP").
	Name string `json:"Name" yaml:"Name" validate:"required"`

	// Advanced holds the tables used by the GGA/GGA+U mixing scheme.
	Advanced Advanced `json:"Advanced" yaml:"Advanced"`

	// OxideCorrections maps oxide subtype to per-atom correction (eV).
	OxideCorrections map[string]float64 `json:"OxideCorrections" yaml:"OxideCorrections" validate:"required,haskey=oxide"`

	// SulfideCorrections maps sulfide subtype to per-atom correction (eV).
	SulfideCorrections map[string]float64 `json:"SulfideCorrections,omitempty" yaml:"SulfideCorrections,omitempty"`

	// AqueousCompoundEnergies maps reduced formula to aqueous reference
	// energy per formula unit (eV).
	AqueousCompoundEnergies map[string]float64 `json:"AqueousCompoundEnergies,omitempty" yaml:"AqueousCompoundEnergies,omitempty"`

	// InputSet describes the calculation settings entries must match.
	InputSet InputSet `json:"InputSet" yaml:"InputSet"`
}

// Advanced holds the mixing-scheme tables.
type Advanced struct {
	// CompoundEnergies maps reduced formula to reference energy per formula
	// unit (eV), used by the gas correction.
	CompoundEnergies map[string]float64 `json:"CompoundEnergies" yaml:"CompoundEnergies" validate:"dive,keys,formula,endkeys"`

	// UCorrections maps most-electronegative element → element → per-atom
	// correction (eV).
	UCorrections map[string]map[string]float64 `json:"UCorrections" yaml:"UCorrections" validate:"dive,keys,element,endkeys"`
}

// InputSet is the calculation input set a preset expects.
type InputSet struct {
	// Name labels the pseudopotential check (e.g. "MPRelaxSet").
	Name string `json:"Name" yaml:"Name" validate:"required"`

	// Hubbards maps most-electronegative element → element → U value.
	Hubbards map[string]map[string]float64 `json:"Hubbards" yaml:"Hubbards" validate:"dive,keys,element,endkeys"`

	// Methods maps element → expected pseudopotential.
	Methods map[string]Method `json:"Methods" yaml:"Methods" validate:"required,min=1,dive,keys,element,endkeys"`
}

// Method is the expected pseudopotential for one element.
type Method struct {
	Symbol string `json:"symbol" yaml:"symbol" validate:"required"`
	Hash   string `json:"hash,omitempty" yaml:"hash,omitempty"`
}

// HasHashes reports whether every method carries a content hash.
func (s InputSet) HasHashes() bool {
	for _, m := range s.Methods {
		if m.Hash == "" {
			return false
		}
	}
	return len(s.Methods) > 0
}
