package correction

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/ecompat/internal/entry"
)

// Formula lists used when neither an oxide_type hint nor structural data is
// available. Matching is exact on the reduced formula.
var (
	CommonPeroxides   = []string{"Li2O2", "Na2O2", "K2O2", "Cs2O2", "Rb2O2", "BeO2", "MgO2", "CaO2", "SrO2", "BaO2"}
	CommonSuperoxides = []string{"LiO2", "NaO2", "KO2", "RbO2", "CsO2"}
	CommonOzonides    = []string{"LiO3", "NaO3", "KO3", "NaO5"}
)

// Oxide and sulfide subtype names used as table keys.
const (
	OxideTypeOxide      = "oxide"
	OxideTypePeroxide   = "peroxide"
	OxideTypeSuperoxide = "superoxide"
	OxideTypeOzonide    = "ozonide"
	OxideTypeHydroxide  = "hydroxide"
	SulfideTypeSulfide  = "sulfide"
)

// AnionRule corrects oxygen and sulfur energies according to the anion's
// oxidation state.
type AnionRule struct {
	name            string
	oxide           map[string]float64
	sulfide         map[string]float64
	correctPeroxide bool
	classifier      StructureClassifier
	logger          *slog.Logger
}

// AnionOption configures an AnionRule.
type AnionOption func(*AnionRule)

// WithClassifier sets the structural classifier used for entries that
// carry structural data.
func WithClassifier(c StructureClassifier) AnionOption {
	return func(r *AnionRule) {
		r.classifier = c
	}
}

// WithAnionLogger sets the logger used for heuristic warnings.
// Default: slog.Default().
func WithAnionLogger(l *slog.Logger) AnionOption {
	return func(r *AnionRule) {
		r.logger = l
	}
}

// NewAnionRule creates an anion correction for the named preset.
// oxide maps oxide subtype to per-atom correction; sulfide maps sulfide
// subtype to per-atom correction and may be nil. When correctPeroxide is
// false every oxygen is corrected as a plain oxide.
func NewAnionRule(preset string, oxide, sulfide map[string]float64, correctPeroxide bool, opts ...AnionOption) *AnionRule {
	r := &AnionRule{
		name:            fmt.Sprintf("%s Anion Correction", preset),
		oxide:           copyTable(oxide),
		sulfide:         copyTable(sulfide),
		correctPeroxide: correctPeroxide,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements Rule.
func (r *AnionRule) Name() string { return r.name }

// Description implements Rule.
func (r *AnionRule) Description() string {
	return "Correct anion energies to obtain the right formation energies. " +
		"Note that this depends on calculations being run within the same input set."
}

// Correction implements Rule. Single-element compositions get 0.
func (r *AnionRule) Correction(e *entry.Entry) (float64, error) {
	comp := e.Composition
	if comp.IsElement() {
		return 0, nil
	}

	correction := 0.0

	if comp.Contains("S") {
		sfType, err := r.sulfideType(e)
		if err != nil {
			return 0, err
		}
		if v, ok := r.sulfide[sfType]; ok {
			correction += v * comp.Count("S")
		}
	}

	if comp.Contains("O") {
		v, err := r.oxygenCorrection(e)
		if err != nil {
			return 0, err
		}
		correction += v
	}

	return correction, nil
}

func (r *AnionRule) sulfideType(e *entry.Entry) (string, error) {
	if t, ok := entry.String(e.Data, "sulfide_type"); ok && t != "" {
		return t, nil
	}
	if e.HasStructure() && r.classifier != nil {
		t, err := r.classifier.SulfideType(e)
		if err != nil {
			return "", incompatible(r, e, "sulfide classification failed: %v", err)
		}
		return t, nil
	}
	return SulfideTypeSulfide, nil
}

func (r *AnionRule) oxygenCorrection(e *entry.Entry) (float64, error) {
	comp := e.Composition
	nO := comp.Count("O")

	if !r.correctPeroxide {
		return r.oxide[OxideTypeOxide] * nO, nil
	}

	if oxType, ok := entry.String(e.Data, "oxide_type"); ok && oxType != "" {
		if oxType == OxideTypeHydroxide {
			return r.oxide[OxideTypeOxide] * nO, nil
		}
		if v, ok := r.oxide[oxType]; ok {
			return v * nO, nil
		}
		return 0, nil
	}

	if e.HasStructure() && r.classifier != nil {
		oxType, bonds, err := r.classifier.OxideType(e)
		if err != nil {
			return 0, incompatible(r, e, "oxide classification failed: %v", err)
		}
		if v, ok := r.oxide[oxType]; ok {
			return v * bonds, nil
		}
		if oxType == OxideTypeHydroxide {
			return r.oxide[OxideTypeOxide] * nO, nil
		}
		return 0, nil
	}

	rform := comp.ReducedFormula()
	r.logger.Warn("oxide type inferred from formula",
		"entry_id", e.ID,
		"formula", rform,
		"reason", "no structure or oxide_type present; peroxide/superoxide detection relies only on special formulas such as Li2O2",
	)

	switch {
	case slices.Contains(CommonPeroxides, rform):
		return r.oxide[OxideTypePeroxide] * nO, nil
	case slices.Contains(CommonSuperoxides, rform):
		return r.oxide[OxideTypeSuperoxide] * nO, nil
	case slices.Contains(CommonOzonides, rform):
		return r.oxide[OxideTypeOzonide] * nO, nil
	case comp.Len() > 1:
		return r.oxide[OxideTypeOxide] * nO, nil
	}
	return 0, nil
}

func copyTable(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
