// Package testutil provides deterministic helpers shared by tests: fixed
// run IDs, a stepping clock and entry builders.
package testutil

import (
	"github.com/roach88/ecompat/internal/chem"
	"github.com/roach88/ecompat/internal/entry"
)

// EntryOption configures an entry built by NewEntry.
type EntryOption func(*entry.Entry)

// NewEntry builds an entry from a formula. Panics on an invalid formula.
func NewEntry(id, formula string, energy float64, opts ...EntryOption) *entry.Entry {
	e := entry.New(id, chem.MustParse(formula), energy)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Param sets a calculation parameter.
func Param(key string, value any) EntryOption {
	return func(e *entry.Entry) { e.Parameters[key] = value }
}

// Potcars sets potcar_symbols in the "PAW_PBE <symbol> <date>" form.
func Potcars(symbols ...string) EntryOption {
	return func(e *entry.Entry) {
		list := make([]any, len(symbols))
		for i, s := range symbols {
			list[i] = "PAW_PBE " + s + " 06Sep2000"
		}
		e.Parameters["potcar_symbols"] = list
	}
}

// Hubbards sets the U values and marks the run GGA+U.
func Hubbards(u map[string]float64) EntryOption {
	return func(e *entry.Entry) {
		m := make(map[string]any, len(u))
		for el, v := range u {
			m[el] = v
		}
		e.Parameters["hubbards"] = m
		e.Parameters["run_type"] = "GGA+U"
	}
}

// Data sets a data field such as oxide_type.
func Data(key string, value any) EntryOption {
	return func(e *entry.Entry) { e.Data[key] = value }
}

// Applied records an adjustment as if a previous run had applied it,
// keeping Correction consistent with the ledger.
func Applied(source, label string, value float64) EntryOption {
	return func(e *entry.Entry) {
		if err := e.ApplyAdjustments(source, entry.Adjustments{{Label: label, Value: value}}); err != nil {
			panic(err)
		}
	}
}

// Correction overwrites Correction without touching the ledger.
func Correction(c float64) EntryOption {
	return func(e *entry.Entry) { e.Correction = c }
}
