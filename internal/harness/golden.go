package harness

import (
	"fmt"
	"math"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/ecompat/internal/canonical"
)

// Snapshot renders a scenario result as canonical JSON for golden
// comparison. Energies are rounded to 1e-6 eV so that summation order
// cannot change the bytes.
func Snapshot(name string, r *Result) ([]byte, error) {
	trace := make([]any, 0, len(r.Trace))
	for _, ev := range r.Trace {
		obj := map[string]any{
			"run":        ev.Run,
			"scheme":     ev.Scheme,
			"entry_id":   ev.EntryID,
			"accepted":   ev.Accepted,
			"correction": round6(ev.Correction),
		}
		if ev.Code != "" {
			obj["code"] = ev.Code
		}
		trace = append(trace, obj)
	}

	entries := make([]any, 0, len(r.Entries))
	for _, e := range r.Entries {
		ledger := map[string]map[string]float64{}
		for _, source := range e.Adjustments.Sources() {
			ledger[source] = map[string]float64{}
			for _, label := range e.Adjustments.Labels(source) {
				ledger[source][label] = round6(e.Adjustments[source][label])
			}
		}
		entries = append(entries, map[string]any{
			"id":                 e.ID,
			"formula":            e.Composition.ReducedFormula(),
			"energy":             round6(e.Energy()),
			"correction":         round6(e.Correction),
			"energy_adjustments": ledger,
		})
	}

	data, err := canonical.Marshal(map[string]any{
		"name":    name,
		"trace":   trace,
		"entries": entries,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", name, err)
	}
	return data, nil
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// RunWithGolden executes a scenario and compares its snapshot with
// testdata/golden/<name>.golden. Use -update to regenerate.
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("scenario execution failed: %v", err)
	}

	data, err := Snapshot(scenario.Name, result)
	if err != nil {
		t.Fatalf("failed to snapshot result: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return result
}
