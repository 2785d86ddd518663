package compat

import (
	"fmt"

	"github.com/roach88/ecompat/internal/correction"
	"github.com/roach88/ecompat/internal/entry"
)

// Component describes one labeled correction a scheme can produce.
type Component struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Scheme computes the adjustments for an entry.
//
// Corrections returns the non-zero adjustments in Components order, or a
// CompatibilityError when the entry cannot be corrected. It must not
// mutate the entry.
type Scheme interface {
	Components() []Component
	Corrections(e *entry.Entry) (entry.Adjustments, error)
}

// RuleSet is an ordered collection of correction rules.
//
// INVARIANTS:
//   - rule order NEVER changes after construction
//   - rule names are unique (they are ledger labels)
type RuleSet struct {
	rules []correction.Rule
}

// NewRuleSet creates a rule set. The rules slice is copied; order is kept
// for deterministic audit output.
func NewRuleSet(rules ...correction.Rule) (*RuleSet, error) {
	seen := make(map[string]bool, len(rules))
	copied := make([]correction.Rule, 0, len(rules))
	for i, r := range rules {
		if r == nil {
			return nil, fmt.Errorf("rule %d is nil", i)
		}
		if seen[r.Name()] {
			return nil, fmt.Errorf("duplicate rule name %q", r.Name())
		}
		seen[r.Name()] = true
		copied = append(copied, r)
	}
	return &RuleSet{rules: copied}, nil
}

// Rules returns the rules in configuration order.
func (s *RuleSet) Rules() []correction.Rule {
	out := make([]correction.Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Components implements Scheme.
func (s *RuleSet) Components() []Component {
	out := make([]Component, len(s.rules))
	for i, r := range s.rules {
		out[i] = Component{Name: r.Name(), Description: r.Description()}
	}
	return out
}

// Corrections implements Scheme. Every rule is evaluated in order; zero
// results are omitted and the first error rejects the whole set.
func (s *RuleSet) Corrections(e *entry.Entry) (entry.Adjustments, error) {
	var out entry.Adjustments
	for _, r := range s.rules {
		v, err := r.Correction(e)
		if err != nil {
			return nil, err
		}
		if v != 0 {
			out = append(out, entry.Adjustment{Label: r.Name(), Value: v})
		}
	}
	return out, nil
}
