package correction

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/ecompat/internal/entry"
)

// VerifyMode selects how declared method identifiers are compared.
type VerifyMode string

const (
	// VerifySymbol compares pseudopotential labels (e.g. "Fe_pv").
	VerifySymbol VerifyMode = "symbol"

	// VerifyHash compares pseudopotential content hashes. Stricter; needs
	// parameters["potcar_spec"] on every entry.
	VerifyHash VerifyMode = "hash"
)

// MethodSpec is the expected pseudopotential for one element.
type MethodSpec struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Hash   string `json:"hash,omitempty" yaml:"hash,omitempty"`
}

// InputMethodRule checks that an entry was computed with the
// pseudopotentials prescribed by an input set. It never changes the
// energy; it only rejects.
//
// Entry.Parameters must contain either "potcar_spec", a list of
// {"titel": "PAW_PBE Fe_pv 06Sep2000", "hash": "..."} records, or
// "potcar_symbols", a list of titles.
type InputMethodRule struct {
	name     string
	mode     VerifyMode
	expected map[string]string
}

// NewInputMethodRule creates the pseudopotential check for the named input
// set. The verification mode is fixed here: hash mode fails when any
// expected method lacks a hash.
func NewInputMethodRule(inputSet string, methods map[string]MethodSpec, mode VerifyMode) (*InputMethodRule, error) {
	r := &InputMethodRule{
		name:     fmt.Sprintf("%s Potcar Correction", inputSet),
		mode:     mode,
		expected: make(map[string]string, len(methods)),
	}
	for el, spec := range methods {
		switch mode {
		case VerifyHash:
			if spec.Hash == "" {
				return nil, fmt.Errorf("cannot check hashes of potcars: no hash set for %s", el)
			}
			r.expected[el] = spec.Hash
		case VerifySymbol:
			r.expected[el] = spec.Symbol
		default:
			return nil, fmt.Errorf("invalid verify mode %q: must be %q or %q", mode, VerifySymbol, VerifyHash)
		}
	}
	return r, nil
}

// Name implements Rule.
func (r *InputMethodRule) Name() string { return r.name }

// Description implements Rule.
func (r *InputMethodRule) Description() string {
	return "Checks that POTCARs are valid within a pre-defined input set. " +
		"This ensures that calculations performed using different InputSets are not compared against each other."
}

// Correction implements Rule. It returns 0 or an INCOMPATIBLE_ENTRY error.
func (r *InputMethodRule) Correction(e *entry.Entry) (float64, error) {
	declared, err := r.declared(e)
	if err != nil {
		return 0, err
	}

	want := make(map[string]struct{})
	for _, el := range e.Composition.Elements() {
		want[r.expected[el]] = struct{}{}
	}

	if !maps.Equal(want, declared) {
		return 0, incompatible(r, e, "incompatible potcar: declared %v, expected %v",
			sortedKeys(declared), sortedKeys(want))
	}
	return 0, nil
}

func (r *InputMethodRule) declared(e *entry.Entry) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	spec, hasSpec := entry.Records(e.Parameters, "potcar_spec")
	hasSpec = hasSpec && len(spec) > 0

	if r.mode == VerifyHash {
		if !hasSpec {
			return nil, incompatible(r, e, "cannot check hash without potcar_spec field")
		}
		for _, rec := range spec {
			if rec == nil {
				continue
			}
			h, _ := rec["hash"].(string)
			out[h] = struct{}{}
		}
		return out, nil
	}

	if hasSpec {
		for _, rec := range spec {
			if rec == nil {
				continue
			}
			titel, _ := rec["titel"].(string)
			out[symbolFromTitle(titel)] = struct{}{}
		}
		return out, nil
	}

	symbols, ok := entry.Strings(e.Parameters, "potcar_symbols")
	if !ok {
		return nil, incompatible(r, e, "parameters must contain potcar_spec or potcar_symbols")
	}
	for _, sym := range symbols {
		if sym == "" {
			continue
		}
		out[symbolFromTitle(sym)] = struct{}{}
	}
	return out, nil
}

// symbolFromTitle extracts "Fe_pv" from "PAW_PBE Fe_pv 06Sep2000".
func symbolFromTitle(title string) string {
	fields := strings.Fields(title)
	if len(fields) < 2 {
		return title
	}
	return fields[1]
}

func sortedKeys(m map[string]struct{}) []string {
	return slices.Sorted(maps.Keys(m))
}
