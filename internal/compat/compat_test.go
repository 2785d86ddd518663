package compat

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ecompat/internal/chem"
	"github.com/roach88/ecompat/internal/correction"
	"github.com/roach88/ecompat/internal/entry"
	"github.com/roach88/ecompat/internal/testutil"
)

// fixedRule returns a constant value or error and counts calls.
type fixedRule struct {
	name  string
	value float64
	err   error
	calls int
}

func (r *fixedRule) Name() string        { return r.name }
func (r *fixedRule) Description() string { return "fixed " + r.name }
func (r *fixedRule) Correction(*entry.Entry) (float64, error) {
	r.calls++
	return r.value, r.err
}

// rejectFormula rejects one reduced formula and is inert otherwise.
type rejectFormula string

func (r rejectFormula) Name() string        { return "Reject " + string(r) }
func (r rejectFormula) Description() string { return "rejects " + string(r) }
func (r rejectFormula) Correction(e *entry.Entry) (float64, error) {
	if e.Composition.ReducedFormula() == string(r) {
		return 0, entry.NewIncompatibleError("%s is not allowed", r)
	}
	return 0, nil
}

func newEntry(id, formula string, energy float64) *entry.Entry {
	return entry.New(id, chem.MustParse(formula), energy)
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func mustRuleSet(t *testing.T, rules ...correction.Rule) *RuleSet {
	t.Helper()
	rs, err := NewRuleSet(rules...)
	require.NoError(t, err)
	return rs
}

func assertLedgerConsistent(t *testing.T, e *entry.Entry) {
	t.Helper()
	assert.InDelta(t, e.Adjustments.Total(), e.Correction, 1e-9,
		"correction must equal the ledger total")
}

// =============================================================================
// RuleSet
// =============================================================================

func TestRuleSet_OmitsZeros(t *testing.T) {
	rs := mustRuleSet(t,
		&fixedRule{name: "A", value: -1.5},
		&fixedRule{name: "B", value: 0},
		&fixedRule{name: "C", value: 0.25},
	)

	adj, err := rs.Corrections(newEntry("x", "Fe2O3", -10))
	require.NoError(t, err)
	assert.Equal(t, entry.Adjustments{{Label: "A", Value: -1.5}, {Label: "C", Value: 0.25}}, adj)
}

func TestRuleSet_FirstErrorRejectsWholeSet(t *testing.T) {
	last := &fixedRule{name: "C", value: 1}
	rs := mustRuleSet(t,
		&fixedRule{name: "A", value: -1},
		&fixedRule{name: "B", err: entry.NewIncompatibleError("nope")},
		last,
	)

	adj, err := rs.Corrections(newEntry("x", "Fe2O3", -10))
	assert.Nil(t, adj)
	assert.True(t, entry.IsIncompatible(err))
	assert.Equal(t, 0, last.calls)
}

func TestRuleSet_Construction(t *testing.T) {
	_, err := NewRuleSet(&fixedRule{name: "A"}, &fixedRule{name: "A"})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewRuleSet(&fixedRule{name: "A"}, nil)
	assert.Error(t, err)

	rs := mustRuleSet(t, &fixedRule{name: "B"}, &fixedRule{name: "A"})
	assert.Equal(t, []Component{
		{Name: "B", Description: "fixed B"},
		{Name: "A", Description: "fixed A"},
	}, rs.Components())
}

func TestRuleSet_CopiesRules(t *testing.T) {
	rules := []correction.Rule{&fixedRule{name: "A"}, &fixedRule{name: "B"}}
	rs := mustRuleSet(t, rules...)
	rules[0] = &fixedRule{name: "Z"}

	assert.Equal(t, "A", rs.Rules()[0].Name())
}

// =============================================================================
// ProcessEntry
// =============================================================================

func TestProcessEntry_RecordsUnderEngineName(t *testing.T) {
	c := New("Test", mustRuleSet(t,
		&fixedRule{name: "A", value: -1.5},
		&fixedRule{name: "B", value: 0.5},
	), WithLogger(quiet()))

	e, err := c.ProcessEntry(newEntry("x", "Fe2O3", -10))
	require.NoError(t, err)

	assert.Equal(t, -1.0, e.Correction)
	assert.Equal(t, -11.0, e.Energy())
	assert.Equal(t, entry.Ledger{"Test": {"A": -1.5, "B": 0.5}}, e.Adjustments)
}

func TestProcessEntry_Idempotent(t *testing.T) {
	for _, clean := range []bool{true, false} {
		t.Run(fmt.Sprintf("clean=%v", clean), func(t *testing.T) {
			c := New("Test", mustRuleSet(t,
				&fixedRule{name: "A", value: -0.1},
				&fixedRule{name: "B", value: -0.2},
			), WithClean(clean), WithLogger(quiet()))

			e, err := c.ProcessEntry(newEntry("x", "Fe2O3", -10))
			require.NoError(t, err)
			firstCorrection := e.Correction
			firstLedger := e.Adjustments.Clone()

			e, err = c.ProcessEntry(e)
			require.NoError(t, err)

			assert.Equal(t, firstCorrection, e.Correction)
			assert.Equal(t, firstLedger, e.Adjustments)
			assert.Equal(t, 2, e.Adjustments.Len())
		})
	}
}

func TestProcessEntry_Conflict(t *testing.T) {
	c := New("Test", mustRuleSet(t,
		&fixedRule{name: "A", value: -1.0},
		&fixedRule{name: "B", value: 2.0},
	), WithClean(false), WithLogger(quiet()))

	t.Run("different value rejects and leaves entry untouched", func(t *testing.T) {
		e := newEntry("x", "Fe2O3", -10)
		e.Adjustments = entry.Ledger{"Test": {"A": 0.5}}
		e.Correction = 0.5

		_, err := c.ProcessEntry(e)
		require.Error(t, err)
		assert.True(t, entry.IsConflict(err))

		var ce *entry.CompatibilityError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "Test", ce.Source)
		assert.Equal(t, "A", ce.Label)
		assert.Equal(t, "x", ce.EntryID)

		assert.Equal(t, 0.5, e.Correction)
		assert.Equal(t, entry.Ledger{"Test": {"A": 0.5}}, e.Adjustments)
	})

	t.Run("identical values leave entry unchanged", func(t *testing.T) {
		e := testutil.NewEntry("x", "Fe2O3", -10,
			testutil.Applied("Test", "A", -1.0),
			testutil.Applied("Test", "B", 2.0),
		)

		got, err := c.ProcessEntry(e)
		require.NoError(t, err)
		assert.Equal(t, 1.0, got.Correction)
		assert.Equal(t, entry.Ledger{"Test": {"A": -1.0, "B": 2.0}}, got.Adjustments)
	})

	t.Run("other sources are independent", func(t *testing.T) {
		e := testutil.NewEntry("x", "Fe2O3", -10, testutil.Applied("Other", "A", 0.5))

		got, err := c.ProcessEntry(e)
		require.NoError(t, err)
		assert.Equal(t, 1.5, got.Correction)
		assert.Equal(t, 0.5, got.Adjustments["Other"]["A"])
		assertLedgerConsistent(t, got)
	})
}

func TestProcessEntry_CleanDiscardsPriorLedger(t *testing.T) {
	c := New("Test", mustRuleSet(t, &fixedRule{name: "A", value: -1.0}), WithLogger(quiet()))

	e := newEntry("x", "Fe2O3", -10)
	e.Adjustments = entry.Ledger{"Test": {"A": 0.5}, "Other": {"Z": 3}}
	e.Correction = 3.5

	got, err := c.ProcessEntry(e)
	require.NoError(t, err)
	assert.Equal(t, -1.0, got.Correction)
	assert.Equal(t, entry.Ledger{"Test": {"A": -1.0}}, got.Adjustments)
}

func TestProcessEntry_LedgerConsistentAcrossChain(t *testing.T) {
	rs := mustRuleSet(t,
		correction.NewReferenceTableRule("MP", map[string]float64{"O2": -4.0}),
		correction.NewAnionRule("MP", map[string]float64{"oxide": -0.7, "peroxide": -0.4}, nil, true,
			correction.WithAnionLogger(quiet())),
	)
	steps := []*Compatibility{
		New("Step1", rs, WithClean(false), WithLogger(quiet())),
		New("Step2", mustRuleSet(t, &fixedRule{name: "Shift", value: 0.125}), WithClean(false), WithLogger(quiet())),
		New("Step3", mustRuleSet(t, &fixedRule{name: "Other", value: -0.3}), WithClean(false), WithLogger(quiet())),
		NewAqueousCompatibility(WithLogger(quiet())),
	}

	for _, e := range []*entry.Entry{
		newEntry("a", "O4", -9),
		newEntry("b", "Li2O2", -14),
		newEntry("c", "FeH2O2", -20),
		newEntry("d", "H2O", -14.2),
	} {
		for _, step := range steps {
			_, err := step.ProcessEntry(e)
			require.NoError(t, err, "%s at %s", e.ID, step.Name())
			assertLedgerConsistent(t, e)
			assert.Nil(t, step.ValidateCorrections(e))
		}
	}
}

// =============================================================================
// Provenance validation
// =============================================================================

func TestValidateCorrections(t *testing.T) {
	var buf bytes.Buffer
	c := New("Test", mustRuleSet(t), WithClean(false),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	e := newEntry("x", "Fe2O3", -10)
	assert.Nil(t, c.ValidateCorrections(e))

	e.Correction = 1.0
	w := c.ValidateCorrections(e)
	require.NotNil(t, w)
	assert.Equal(t, 1.0, w.Correction)
	assert.Equal(t, 0.0, w.Documented)
	assert.Contains(t, w.String(), "entry x")
	assert.Contains(t, buf.String(), "energy correction provenance unknown")

	e.Adjustments = entry.Ledger{"Other": {"A": 1.0 + LedgerTolerance/10}}
	assert.Nil(t, c.ValidateCorrections(e))
}

func TestProcessEntry_WarningDoesNotBlock(t *testing.T) {
	var buf bytes.Buffer
	c := New("Test", mustRuleSet(t, &fixedRule{name: "A", value: -1}), WithClean(false),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	e := testutil.NewEntry("x", "Fe2O3", -10, testutil.Correction(2.0))

	got, err := c.ProcessEntry(e)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Correction)
	assert.Contains(t, buf.String(), "provenance unknown")
}

// =============================================================================
// Batches
// =============================================================================

func TestProcessEntries_DropsRejectedPreservingOrder(t *testing.T) {
	c := New("Test", mustRuleSet(t, rejectFormula("FeO"), &fixedRule{name: "A", value: -1}),
		WithLogger(quiet()))

	a := newEntry("A", "Fe2O3", -10)
	b := newEntry("B", "FeO", -10)
	cc := newEntry("C", "NiO", -10)

	got := c.ProcessEntries([]*entry.Entry{a, b, cc})
	require.Len(t, got, 2)
	assert.Same(t, a, got[0])
	assert.Same(t, cc, got[1])
}

func TestProcessEntries_Parallel(t *testing.T) {
	c := New("Test", mustRuleSet(t, rejectFormula("FeO"), &fixedRule{name: "A", value: -1}),
		WithLogger(quiet()), WithWorkers(4))

	var entries, want []*entry.Entry
	for i := range 100 {
		formula := "Fe2O3"
		if i%3 == 1 {
			formula = "FeO"
		}
		e := newEntry(fmt.Sprintf("e%03d", i), formula, -float64(i))
		entries = append(entries, e)
		if formula != "FeO" {
			want = append(want, e)
		}
	}

	outcomes := c.Process(entries)
	require.Len(t, outcomes, 100)
	for i, o := range outcomes {
		assert.Same(t, entries[i], o.Entry)
		assert.Equal(t, i%3 != 1, o.Accepted(), "entry %d", i)
	}

	got := c.ProcessEntries(entries)
	assert.Equal(t, want, got)
	for _, e := range got {
		assert.Equal(t, -1.0, e.Correction)
	}
}

func TestProcessEntries_Empty(t *testing.T) {
	c := New("Test", mustRuleSet(t), WithLogger(quiet()))
	assert.Empty(t, c.ProcessEntries(nil))
}

// =============================================================================
// Explain
// =============================================================================

func TestExplain_AgreesWithProcess(t *testing.T) {
	rs := mustRuleSet(t,
		correction.NewReferenceTableRule("MP", map[string]float64{"O2": -4.0}),
		correction.NewAnionRule("MP", map[string]float64{"oxide": -0.7, "peroxide": -0.4}, nil, true,
			correction.WithAnionLogger(quiet())),
		rejectFormula("FeO"),
	)

	for _, clean := range []bool{true, false} {
		c := New("Test", rs, WithClean(clean), WithLogger(quiet()))
		for _, e := range []*entry.Entry{
			newEntry("a", "O4", -9),
			newEntry("b", "Li2O2", -14),
			newEntry("c", "Fe2O3", -38),
			newEntry("d", "FeO", -10),
		} {
			before := e.Clone()
			ex := c.Explain(e)
			assert.Equal(t, before, e, "explain must not mutate %s", e.ID)

			processed, err := c.ProcessEntry(e.Clone())
			if err != nil {
				assert.Nil(t, ex.CorrectedEnergy)
				assert.Equal(t, err.Error(), ex.Rejection)
				continue
			}
			require.NotNil(t, ex.CorrectedEnergy, e.ID)
			assert.Equal(t, processed.Energy(), *ex.CorrectedEnergy)

			total := 0.0
			for _, corr := range ex.Corrections {
				assert.Equal(t, processed.Adjustments["Test"][corr.Name], corr.Value)
				total += corr.Value
			}
			assert.InDelta(t, processed.Correction, total, 1e-12)
		}
	}
}

func TestExplain_ConfigurationOrder(t *testing.T) {
	c := New("Test", mustRuleSet(t,
		&fixedRule{name: "Zeta", value: 1},
		&fixedRule{name: "Alpha", value: 0},
		&fixedRule{name: "Mid", value: -2},
	), WithLogger(quiet()))

	ex := c.Explain(newEntry("x", "Fe2O3", -10))

	require.Len(t, ex.Corrections, 3)
	assert.Equal(t, "Zeta", ex.Corrections[0].Name)
	assert.Equal(t, "Alpha", ex.Corrections[1].Name)
	assert.Equal(t, "Mid", ex.Corrections[2].Name)
	assert.Equal(t, 0.0, ex.Corrections[1].Value)
	assert.Equal(t, "fixed Mid", ex.Corrections[2].Description)
	require.NotNil(t, ex.CorrectedEnergy)
	assert.Equal(t, -11.0, *ex.CorrectedEnergy)
	assert.Equal(t, "Fe2O3", ex.Formula)
}

func TestExplain_Rejected(t *testing.T) {
	c := New("Test", mustRuleSet(t, &fixedRule{name: "A", value: -1}, rejectFormula("FeO")),
		WithLogger(quiet()))

	ex := c.Explain(newEntry("x", "FeO", -10))

	assert.Nil(t, ex.CorrectedEnergy)
	assert.Contains(t, ex.Rejection, string(entry.ErrCodeIncompatible))
	assert.Equal(t, -10.0, ex.UncorrectedEnergy)
	for _, corr := range ex.Corrections {
		assert.Equal(t, 0.0, corr.Value)
	}
}

func TestExplain_WarningsFromCallerLedger(t *testing.T) {
	c := New("Test", mustRuleSet(t, &fixedRule{name: "A", value: -1}), WithLogger(quiet()))

	e := testutil.NewEntry("x", "Fe2O3", -10, testutil.Correction(0.75))

	ex := c.Explain(e)
	require.Len(t, ex.Warnings, 1)
	assert.Contains(t, ex.Warnings[0], "provenance")
	require.NotNil(t, ex.CorrectedEnergy)
	assert.Equal(t, -11.0, *ex.CorrectedEnergy)
	assert.Equal(t, 0.75, e.Correction)
}

// =============================================================================
// Aqueous free energy
// =============================================================================

func TestAqueousFreeEnergy_FittedEnergies(t *testing.T) {
	s := NewAqueousFreeEnergy()
	assert.InDelta(t, -3.69923, s.H2Energy(), 1e-9)
	assert.InDelta(t, -5.033697, s.FitH2OEnergy(), 1e-9)
}

func TestAqueousFreeEnergy_Corrections(t *testing.T) {
	s := NewAqueousFreeEnergy()

	t.Run("H2O pinned per atom", func(t *testing.T) {
		adj, err := s.Corrections(newEntry("w", "H2O", -14.0))
		require.NoError(t, err)
		assert.InDelta(t, s.FitH2OEnergy()*3+14.0, adj.Value(LabelFitH2H2O), 1e-12)
		assert.Len(t, adj, 1)
	})

	t.Run("H2 pinned against other sources", func(t *testing.T) {
		e := testutil.NewEntry("h", "H2", -6.0, testutil.Applied("MP", "Gas", -1.0))
		adj, err := s.Corrections(e)
		require.NoError(t, err)
		assert.InDelta(t, s.H2Energy()*2+7.0, adj.Value(LabelFitH2H2O), 1e-12)
	})

	t.Run("entropy for molecular compounds", func(t *testing.T) {
		adj, err := s.Corrections(newEntry("o", "O2", -9.8))
		require.NoError(t, err)
		assert.Equal(t, entry.Adjustments{{Label: LabelEntropy, Value: -0.316731 * 2}}, adj)
	})

	t.Run("hydrate", func(t *testing.T) {
		adj, err := s.Corrections(newEntry("f", "FeH4O3", -30))
		require.NoError(t, err)
		assert.InDelta(t, 0.70229+2.4583*2, adj.Value(LabelHydrate), 1e-12)
		assert.Equal(t, 0.0, adj.Value(LabelFitH2H2O))
	})

	t.Run("plain solid unaffected", func(t *testing.T) {
		adj, err := s.Corrections(newEntry("s", "Fe2O3", -38))
		require.NoError(t, err)
		assert.Empty(t, adj)
	})
}

func TestAqueousCompatibility_RerunIsIdempotent(t *testing.T) {
	solid := New("MP", mustRuleSet(t, &fixedRule{name: "Gas", value: -0.70229}), WithLogger(quiet()))
	aq := NewAqueousCompatibility(WithLogger(quiet()))
	assert.False(t, aq.Clean())

	e := newEntry("w", "H2O", -14.8852)
	_, err := solid.ProcessEntry(e)
	require.NoError(t, err)
	_, err = aq.ProcessEntry(e)
	require.NoError(t, err)

	assert.InDelta(t, NewAqueousFreeEnergy().FitH2OEnergy()*3, e.Energy(), 1e-9)
	first := e.Adjustments.Clone()

	_, err = aq.ProcessEntry(e)
	require.NoError(t, err)
	assert.Equal(t, first, e.Adjustments)
	assert.False(t, math.IsNaN(e.Correction))
	assertLedgerConsistent(t, e)
}
