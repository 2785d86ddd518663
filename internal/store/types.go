package store

import (
	"fmt"
	"time"

	"github.com/roach88/ecompat/internal/canonical"
	"github.com/roach88/ecompat/internal/entry"
)

// Run is one batch of entries processed by a single compatibility scheme.
type Run struct {
	ID                string    `json:"id"`
	Seq               int64     `json:"seq"`
	Scheme            string    `json:"scheme"`
	SchemeFingerprint string    `json:"scheme_fingerprint"`
	Preset            string    `json:"preset"`
	Clean             bool      `json:"clean"`
	CreatedAt         time.Time `json:"created_at"`
}

// Result is the outcome for one entry of a run.
type Result struct {
	EntryID           string  `json:"entry_id"`
	Seq               int64   `json:"seq"`
	Formula           string  `json:"formula"`
	Accepted          bool    `json:"accepted"`
	Reason            string  `json:"reason,omitempty"`
	UncorrectedEnergy float64 `json:"uncorrected_energy"`
	Correction        float64 `json:"correction"`
	LedgerFingerprint string  `json:"ledger_fingerprint"`

	// Adjustments is the entry's ledger after processing. Empty for
	// rejected entries.
	Adjustments entry.Ledger `json:"energy_adjustments,omitempty"`
}

// NewResult records the outcome of processing e at position seq of a run.
// A non-nil procErr marks the entry rejected; its ledger is not stored.
func NewResult(seq int64, e *entry.Entry, procErr error) (Result, error) {
	r := Result{
		EntryID:           e.ID,
		Seq:               seq,
		Formula:           e.Composition.ReducedFormula(),
		Accepted:          procErr == nil,
		UncorrectedEnergy: e.UncorrectedEnergy,
		Correction:        e.Correction,
	}
	if procErr != nil {
		r.Reason = procErr.Error()
	} else {
		r.Adjustments = e.Adjustments.Clone()
	}

	fp, err := canonical.LedgerFingerprint(r.Adjustments)
	if err != nil {
		return Result{}, fmt.Errorf("result for %s: %w", e, err)
	}
	r.LedgerFingerprint = fp
	return r, nil
}

// HistoryRecord pairs a stored result with the run that produced it.
type HistoryRecord struct {
	Run    Run    `json:"run"`
	Result Result `json:"result"`
}
