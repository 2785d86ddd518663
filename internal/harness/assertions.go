package harness

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/roach88/ecompat/internal/compat"
	"github.com/roach88/ecompat/internal/entry"
)

// tolerance is the absolute difference under which two energies agree.
const tolerance = 1e-6

func near(a, b float64) bool {
	return math.Abs(a-b) <= tolerance
}

// checkExpectations evaluates every expect clause against the final
// outcome.
func (x *execution) checkExpectations(result *Result) {
	for _, ex := range x.scenario.Expect {
		for _, msg := range checkExpect(ex, result) {
			result.AddError(fmt.Sprintf("expect %s: %s", ex.Entry, msg))
		}
	}
}

func checkExpect(ex EntryExpect, result *Result) []string {
	var errs []string
	e := result.Entry(ex.Entry)
	rejection := result.Rejections[ex.Entry]

	if ex.Accepted != nil {
		if *ex.Accepted && e == nil {
			errs = append(errs, fmt.Sprintf("expected accepted, got rejected: %v", rejection))
		}
		if !*ex.Accepted && e != nil {
			errs = append(errs, "expected rejected, got accepted")
		}
	}

	if ex.Code != "" {
		if got := errorCode(rejection); rejection == nil || got != ex.Code {
			errs = append(errs, fmt.Sprintf("expected rejection code %s, got %q", ex.Code, codeOrNone(rejection)))
		}
	}

	if e == nil {
		if ex.Correction != nil || ex.Energy != nil || len(ex.Adjustments) > 0 {
			errs = append(errs, "energy expectations need an accepted entry")
		}
		return errs
	}

	if ex.Correction != nil && !near(e.Correction, *ex.Correction) {
		errs = append(errs, fmt.Sprintf("correction = %.6f, expected %.6f", e.Correction, *ex.Correction))
	}
	if ex.Energy != nil && !near(e.Energy(), *ex.Energy) {
		errs = append(errs, fmt.Sprintf("energy = %.6f, expected %.6f", e.Energy(), *ex.Energy))
	}
	for source, labels := range ex.Adjustments {
		for label, want := range labels {
			got, ok := e.Adjustments.Lookup(source, label)
			switch {
			case !ok:
				errs = append(errs, fmt.Sprintf("ledger has no %s/%s", source, label))
			case !near(got, want):
				errs = append(errs, fmt.Sprintf("%s/%s = %.6f, expected %.6f", source, label, got, want))
			}
		}
	}
	slices.Sort(errs)
	return errs
}

func codeOrNone(err error) string {
	if err == nil {
		return ""
	}
	return errorCode(err)
}

// checkAssertions evaluates every whole-scenario assertion.
func (x *execution) checkAssertions(ctx context.Context, result *Result) error {
	for i, a := range x.scenario.Assertions {
		var err error
		switch a.Type {
		case AssertAcceptedOrder:
			err = assertAcceptedOrder(result.Entries, a.Entries)
		case AssertLedgerConsistent:
			err = assertLedgerConsistent(result.Entries)
		case AssertIdempotent:
			err = assertIdempotent(x.lastEngine, result.Entries)
		case AssertExplainAgrees:
			err = assertExplainAgrees(x.lastEngine, x.lastInputs, result)
		case AssertHistoryCount:
			history, readErr := x.store.ReadEntryHistory(ctx, a.Entry)
			if readErr != nil {
				return fmt.Errorf("assertion %d: %w", i, readErr)
			}
			if len(history) != a.Count {
				err = fmt.Errorf("history for %s has %d records, expected %d", a.Entry, len(history), a.Count)
			}
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			result.AddError(fmt.Sprintf("assertion %d (%s) failed: %v", i, a.Type, err))
		}
	}
	return nil
}

// assertAcceptedOrder verifies that the survivors appear in exactly the
// expected order.
func assertAcceptedOrder(survivors []*entry.Entry, want []string) error {
	got := make([]string, 0, len(survivors))
	for _, e := range survivors {
		got = append(got, e.ID)
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("accepted %v, expected %v", got, want)
	}
	return nil
}

// assertLedgerConsistent verifies that every survivor's correction is
// fully documented by its ledger.
func assertLedgerConsistent(survivors []*entry.Entry) error {
	for _, e := range survivors {
		if w := compat.CheckLedger(e); w != nil {
			return fmt.Errorf("%s", w.String())
		}
	}
	return nil
}

// assertIdempotent re-runs the last scheme on copies of the survivors and
// verifies that nothing changes.
func assertIdempotent(engine *compat.Compatibility, survivors []*entry.Entry) error {
	for _, o := range engine.Process(cloneAll(survivors)) {
		if !o.Accepted() {
			return fmt.Errorf("%s rejected on re-run: %v", o.Entry.ID, o.Err)
		}
		before := findEntry(survivors, o.Entry.ID)
		if !near(before.Correction, o.Entry.Correction) {
			return fmt.Errorf("%s correction changed on re-run: %.6f -> %.6f",
				o.Entry.ID, before.Correction, o.Entry.Correction)
		}
		if err := compareLedgers(before.Adjustments, o.Entry.Adjustments); err != nil {
			return fmt.Errorf("%s ledger changed on re-run: %w", o.Entry.ID, err)
		}
	}
	return nil
}

// assertExplainAgrees verifies that Explain, given the last run's inputs,
// predicts which entries survived and their corrected energies.
func assertExplainAgrees(engine *compat.Compatibility, inputs []*entry.Entry, result *Result) error {
	for _, in := range inputs {
		ex := engine.Explain(in)
		e := result.Entry(in.ID)
		switch {
		case ex.Rejection == "" && e == nil:
			return fmt.Errorf("explain accepts %s but the run rejected it", in.ID)
		case ex.Rejection != "" && e != nil:
			return fmt.Errorf("explain rejects %s (%s) but the run accepted it", in.ID, ex.Rejection)
		case e != nil && !near(*ex.CorrectedEnergy, e.Energy()):
			return fmt.Errorf("explain predicts %.6f eV for %s, run produced %.6f eV",
				*ex.CorrectedEnergy, in.ID, e.Energy())
		}
	}
	return nil
}

func compareLedgers(a, b entry.Ledger) error {
	if a.Len() != b.Len() {
		return fmt.Errorf("%d labels, then %d", a.Len(), b.Len())
	}
	for _, source := range a.Sources() {
		for _, label := range a.Labels(source) {
			va, _ := a.Lookup(source, label)
			vb, ok := b.Lookup(source, label)
			if !ok || !near(va, vb) {
				return fmt.Errorf("%s/%s: %.6f, then %.6f", source, label, va, vb)
			}
		}
	}
	return nil
}

func findEntry(entries []*entry.Entry, id string) *entry.Entry {
	for _, e := range entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}
