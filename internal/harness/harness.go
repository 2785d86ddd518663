package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/ecompat/internal/canonical"
	"github.com/roach88/ecompat/internal/compat"
	"github.com/roach88/ecompat/internal/config"
	"github.com/roach88/ecompat/internal/correction"
	"github.com/roach88/ecompat/internal/entry"
	"github.com/roach88/ecompat/internal/preset"
	"github.com/roach88/ecompat/internal/store"
	"github.com/roach88/ecompat/internal/testutil"
)

// execution holds the state shared by expect clauses and assertions.
type execution struct {
	scenario *Scenario
	preset   *config.Preset
	opts     preset.Options
	store    *store.Store

	// lastEngine and lastInputs describe the final run: the scheme and
	// deep copies of the entries it was given.
	lastEngine *compat.Compatibility
	lastInputs []*entry.Entry
}

// Run executes a scenario and returns the result.
//
// Each run step builds its scheme from the scenario's preset and options,
// processes the survivors of the previous step and records the outcome in
// a fresh in-memory store. Run IDs are "run-1", "run-2", ... and
// timestamps come from a StepClock, so stored history is deterministic.
//
// An error is returned only when the scenario cannot be executed at all
// (bad preset, scheme construction failure, store failure). Failed
// expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	p, err := resolvePreset(scenario.Preset)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:",
		store.WithIDGenerator(testutil.NewFixedIDGenerator(testutil.SequentialIDs("run", len(scenario.Runs))...)),
		store.WithClock(testutil.NewStepClock().Now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	x := &execution{
		scenario: scenario,
		preset:   p,
		opts:     scenario.Options.apply(),
		store:    st,
	}

	entries := make([]*entry.Entry, 0, len(scenario.Entries))
	for _, spec := range scenario.Entries {
		e, err := spec.build()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	result := NewResult()
	for i, step := range scenario.Runs {
		entries, err = x.runStep(ctx, i+1, step, entries, result)
		if err != nil {
			return nil, err
		}
	}
	result.Entries = entries

	x.checkExpectations(result)
	if err := x.checkAssertions(ctx, result); err != nil {
		return nil, err
	}

	return result, nil
}

// runStep applies one scheme to entries and returns the survivors.
func (x *execution) runStep(ctx context.Context, n int, step RunStep, entries []*entry.Entry, result *Result) ([]*entry.Entry, error) {
	opts := x.opts
	if step.Workers > 0 {
		opts.Workers = step.Workers
	}
	engine, err := preset.ByName(step.Scheme, x.preset, opts)
	if err != nil {
		return nil, fmt.Errorf("run %d: %w", n, err)
	}

	x.lastEngine = engine
	x.lastInputs = cloneAll(entries)

	fp, err := canonical.SchemeFingerprint(engine.Name(), engine.Clean(), componentNames(engine))
	if err != nil {
		return nil, fmt.Errorf("run %d: %w", n, err)
	}
	run, err := x.store.BeginRun(ctx, store.Run{
		Scheme:            engine.Name(),
		SchemeFingerprint: fp,
		Preset:            x.preset.Name,
		Clean:             engine.Clean(),
	})
	if err != nil {
		return nil, fmt.Errorf("run %d: %w", n, err)
	}

	var survivors []*entry.Entry
	for i, o := range engine.Process(entries) {
		ev := TraceEvent{
			Run:        n,
			Scheme:     engine.Name(),
			EntryID:    o.Entry.ID,
			Accepted:   o.Accepted(),
			Correction: o.Entry.Correction,
		}
		if o.Accepted() {
			survivors = append(survivors, o.Entry)
		} else {
			ev.Code = errorCode(o.Err)
			result.Rejections[o.Entry.ID] = o.Err
		}
		result.Trace = append(result.Trace, ev)

		r, err := store.NewResult(int64(i), o.Entry, o.Err)
		if err != nil {
			return nil, err
		}
		if err := x.store.WriteResult(ctx, run.ID, r); err != nil {
			return nil, fmt.Errorf("run %d: %w", n, err)
		}
	}
	return survivors, nil
}

// resolvePreset loads a builtin preset by name or a preset file by path.
// An empty name selects the Materials Project preset.
func resolvePreset(name string) (*config.Preset, error) {
	if name == "" {
		name = "mp"
	}
	if isBuiltinPreset(name) {
		return preset.Builtin(name)
	}
	return config.LoadPreset(name)
}

// apply overlays scenario options on the default scheme options.
func (o Options) apply() preset.Options {
	opts := preset.DefaultOptions()
	opts.Logger = slog.New(slog.DiscardHandler)
	if o.CompatType != "" {
		opts.CompatType = correction.CompatType(o.CompatType)
	}
	if o.CorrectPeroxide != nil {
		opts.CorrectPeroxide = *o.CorrectPeroxide
	}
	if o.Clean != nil {
		opts.Clean = *o.Clean
	}
	opts.CheckHash = o.CheckHash
	return opts
}

func errorCode(err error) string {
	var ce *entry.CompatibilityError
	if errors.As(err, &ce) {
		return string(ce.Code)
	}
	return "ERROR"
}

func componentNames(c *compat.Compatibility) []string {
	var names []string
	for _, comp := range c.Scheme().Components() {
		names = append(names, comp.Name)
	}
	return names
}

func cloneAll(entries []*entry.Entry) []*entry.Entry {
	out := make([]*entry.Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}
