package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ecompat/internal/chem"
	"github.com/roach88/ecompat/internal/entry"
	"github.com/roach88/ecompat/internal/preset"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Preset is "mp", "mit" or a preset file path. Relative paths are
	// resolved against the scenario file. Default: "mp".
	Preset string `yaml:"preset,omitempty"`

	// Options configure every run's scheme.
	Options Options `yaml:"options,omitempty"`

	// Entries are the input entries.
	Entries []EntrySpec `yaml:"entries"`

	// Runs are applied in order. Each run sees only the entries accepted
	// by the previous one.
	Runs []RunStep `yaml:"runs"`

	// Expect holds per-entry expectations on the final outcome.
	Expect []EntryExpect `yaml:"expect,omitempty"`

	// Assertions validate whole-scenario properties.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Options mirror preset.Options. Nil pointers keep the defaults.
type Options struct {
	CompatType      string `yaml:"compat_type,omitempty"`
	CorrectPeroxide *bool  `yaml:"correct_peroxide,omitempty"`
	CheckHash       bool   `yaml:"check_hash,omitempty"`
	Clean           *bool  `yaml:"clean,omitempty"`
}

// EntrySpec describes an input entry.
type EntrySpec struct {
	ID          string                        `yaml:"id"`
	Formula     string                        `yaml:"formula"`
	Energy      float64                       `yaml:"energy"`
	Correction  float64                       `yaml:"correction,omitempty"`
	Parameters  map[string]interface{}        `yaml:"parameters,omitempty"`
	Data        map[string]interface{}        `yaml:"data,omitempty"`
	Adjustments map[string]map[string]float64 `yaml:"energy_adjustments,omitempty"`
}

// RunStep names a scheme to apply.
type RunStep struct {
	// Scheme is one of mp, mit, mit-aqueous, aqueous.
	Scheme string `yaml:"scheme"`

	// Workers bounds batch parallelism. Default: sequential.
	Workers int `yaml:"workers,omitempty"`
}

// EntryExpect specifies the expected final outcome of one entry.
// Unset fields are not checked.
type EntryExpect struct {
	Entry       string                        `yaml:"entry"`
	Accepted    *bool                         `yaml:"accepted,omitempty"`
	Code        string                        `yaml:"code,omitempty"`
	Correction  *float64                      `yaml:"correction,omitempty"`
	Energy      *float64                      `yaml:"energy,omitempty"`
	Adjustments map[string]map[string]float64 `yaml:"energy_adjustments,omitempty"`
}

// Assertion validates a whole-scenario property.
type Assertion struct {
	// Type specifies the assertion type:
	// - "accepted_order": surviving entry IDs, in order
	// - "ledger_consistent": every survivor's correction equals its ledger
	// - "idempotent": re-running the last run changes nothing
	// - "explain_agrees": explain predicts the last run's outcome
	// - "history_count": stored outcomes for an entry
	Type string `yaml:"type"`

	// Entries is the expected order (used by accepted_order).
	Entries []string `yaml:"entries,omitempty"`

	// Entry names the entry (used by history_count).
	Entry string `yaml:"entry,omitempty"`

	// Count is the expected number of stored outcomes (used by history_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertAcceptedOrder    = "accepted_order"
	AssertLedgerConsistent = "ledger_consistent"
	AssertIdempotent       = "idempotent"
	AssertExplainAgrees    = "explain_agrees"
	AssertHistoryCount     = "history_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// A relative preset path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if p := scenario.Preset; p != "" && !isBuiltinPreset(p) && !filepath.IsAbs(p) {
		scenario.Preset = filepath.Join(filepath.Dir(path), p)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func isBuiltinPreset(name string) bool {
	return name == "mp" || name == "mit"
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Entries) == 0 {
		return fmt.Errorf("entries list is required and must be non-empty")
	}

	if len(s.Runs) == 0 {
		return fmt.Errorf("runs list is required and must be non-empty")
	}

	seen := map[string]bool{}
	for i, e := range s.Entries {
		if e.ID == "" {
			return fmt.Errorf("entries[%d]: id is required", i)
		}
		if seen[e.ID] {
			return fmt.Errorf("entries[%d]: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true
		if _, err := chem.Parse(e.Formula); err != nil {
			return fmt.Errorf("entries[%d]: %w", i, err)
		}
	}

	for i, r := range s.Runs {
		switch r.Scheme {
		case preset.SchemeMP, preset.SchemeMIT, preset.SchemeMITAqueous, preset.SchemeAqueous:
		default:
			return fmt.Errorf("runs[%d]: unknown scheme %q", i, r.Scheme)
		}
	}

	for i, ex := range s.Expect {
		if !seen[ex.Entry] {
			return fmt.Errorf("expect[%d]: unknown entry %q", i, ex.Entry)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertAcceptedOrder:
		if a.Entries == nil {
			return fmt.Errorf("assertions[%d]: entries list is required for accepted_order", index)
		}
	case AssertLedgerConsistent, AssertIdempotent, AssertExplainAgrees:
	case AssertHistoryCount:
		if a.Entry == "" {
			return fmt.Errorf("assertions[%d]: entry is required for history_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for history_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// build creates the entry described by s.
func (s EntrySpec) build() (*entry.Entry, error) {
	comp, err := chem.Parse(s.Formula)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", s.ID, err)
	}
	e := entry.New(s.ID, comp, s.Energy)
	e.Correction = s.Correction
	for k, v := range s.Parameters {
		e.Parameters[k] = v
	}
	for k, v := range s.Data {
		e.Data[k] = v
	}
	if len(s.Adjustments) > 0 {
		e.Adjustments = entry.Ledger{}
		for src, labels := range s.Adjustments {
			e.Adjustments[src] = map[string]float64{}
			for label, v := range labels {
				e.Adjustments[src][label] = v
			}
		}
	}
	return e, nil
}
