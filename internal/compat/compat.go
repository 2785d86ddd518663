package compat

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/ecompat/internal/entry"
)

// LedgerTolerance is the largest difference (eV) between an entry's
// correction and its ledger total that still counts as consistent. It
// absorbs floating-point summation order, nothing more.
const LedgerTolerance = 1e-6

// Compatibility applies a Scheme to entries under the ledger protocol.
//
// Thread-safety model:
//   - a Compatibility is immutable after New and safe for concurrent use
//   - each call mutates only the entry it is given
type Compatibility struct {
	name    string
	scheme  Scheme
	clean   bool
	workers int
	logger  *slog.Logger
}

// Option configures a Compatibility.
type Option func(*Compatibility)

// WithClean controls whether entries are reset before processing.
//
// Default: true. A clean run discards every prior correction and ledger
// entry, so corrections from other engines are lost.
func WithClean(clean bool) Option {
	return func(c *Compatibility) {
		c.clean = clean
	}
}

// WithLogger sets the logger for provenance warnings and rejections.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Compatibility) {
		c.logger = l
	}
}

// WithWorkers bounds the number of goroutines ProcessEntries uses.
// Default: 1 (sequential).
func WithWorkers(n int) Option {
	return func(c *Compatibility) {
		c.workers = n
	}
}

// New creates a Compatibility. name is the ledger source under which every
// adjustment is recorded.
func New(name string, scheme Scheme, opts ...Option) *Compatibility {
	c := &Compatibility{
		name:    name,
		scheme:  scheme,
		clean:   true,
		workers: 1,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers < 1 {
		c.workers = 1
	}
	return c
}

// Name returns the ledger source name.
func (c *Compatibility) Name() string { return c.name }

// Scheme returns the scheme this engine applies.
func (c *Compatibility) Scheme() Scheme { return c.scheme }

// Clean reports whether entries are reset before processing.
func (c *Compatibility) Clean() bool { return c.clean }

// ProvenanceWarning reports an entry whose correction does not match its
// ledger. It is never fatal.
type ProvenanceWarning struct {
	EntryID    string
	Correction float64
	Documented float64
}

// String returns the warning text.
func (w *ProvenanceWarning) String() string {
	return fmt.Sprintf(
		"entry %s has energy correction %.6f eV but only %.6f eV is documented in the ledger; "+
			"provenance of the remainder is unknown",
		w.EntryID, w.Correction, w.Documented)
}

// ValidateCorrections checks that e.Correction equals the ledger total.
// It returns nil when they agree and logs a warning otherwise.
func (c *Compatibility) ValidateCorrections(e *entry.Entry) *ProvenanceWarning {
	w := CheckLedger(e)
	if w != nil {
		c.logger.Warn("energy correction provenance unknown",
			"entry_id", e.ID,
			"correction", w.Correction,
			"documented", w.Documented,
		)
	}
	return w
}

// CheckLedger is ValidateCorrections without logging. It needs no
// scheme.
func CheckLedger(e *entry.Entry) *ProvenanceWarning {
	documented := e.Adjustments.Total()
	if math.Abs(documented-e.Correction) <= LedgerTolerance {
		return nil
	}
	return &ProvenanceWarning{
		EntryID:    e.ID,
		Correction: e.Correction,
		Documented: documented,
	}
}

// ProcessEntry corrects e in place and returns it.
//
// On rejection e is returned unchanged apart from the clean-mode reset,
// together with a CompatibilityError (INCOMPATIBLE_ENTRY or
// CONFLICTING_CORRECTION).
func (c *Compatibility) ProcessEntry(e *entry.Entry) (*entry.Entry, error) {
	if c.clean {
		e.Reset()
	}
	c.ValidateCorrections(e)

	if _, err := c.apply(e); err != nil {
		c.logger.Debug("entry rejected",
			"entry_id", e.ID,
			"compatibility", c.name,
			"error", err,
		)
		return e, err
	}
	return e, nil
}

// apply computes the scheme's adjustments and merges them into the ledger.
// It returns the computed adjustments, including those already recorded.
func (c *Compatibility) apply(e *entry.Entry) (entry.Adjustments, error) {
	adjustments, err := c.scheme.Corrections(e)
	if err != nil {
		var ce *entry.CompatibilityError
		if errors.As(err, &ce) && ce.EntryID == "" {
			ce.EntryID = e.ID
		}
		return nil, err
	}
	if err := e.ApplyAdjustments(c.name, adjustments); err != nil {
		return nil, err
	}
	return adjustments, nil
}

// Outcome is the result of processing one entry of a batch.
type Outcome struct {
	Entry *entry.Entry
	Err   error
}

// Accepted reports whether the entry survived processing.
func (o Outcome) Accepted() bool { return o.Err == nil }

// Process runs ProcessEntry on every entry and reports each outcome in
// input order. Entries are independent; with WithWorkers(n > 1) they are
// processed by a bounded pool of goroutines.
func (c *Compatibility) Process(entries []*entry.Entry) []Outcome {
	outcomes := make([]Outcome, len(entries))

	if c.workers == 1 {
		for i, e := range entries {
			processed, err := c.ProcessEntry(e)
			outcomes[i] = Outcome{Entry: processed, Err: err}
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, e := range entries {
		g.Go(func() error {
			processed, err := c.ProcessEntry(e)
			outcomes[i] = Outcome{Entry: processed, Err: err}
			return nil // rejections are per-entry results, not batch failures
		})
	}
	_ = g.Wait()

	return outcomes
}

// ProcessEntries corrects every entry and returns the accepted ones in
// input order. Rejected entries are dropped.
func (c *Compatibility) ProcessEntries(entries []*entry.Entry) []*entry.Entry {
	var out []*entry.Entry
	for _, o := range c.Process(entries) {
		if o.Accepted() {
			out = append(out, o.Entry)
		}
	}
	return out
}
