package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ecompat/internal/compat"
)

// ValidationResult holds ledger validation results.
type ValidationResult struct {
	Valid      bool             `json:"valid"`
	Checked    int              `json:"checked"`
	Mismatches []LedgerMismatch `json:"mismatches,omitempty"`
}

// LedgerMismatch is an entry whose correction is not fully documented by
// its ledger.
type LedgerMismatch struct {
	EntryID    string  `json:"entry_id"`
	Correction float64 `json:"correction"`
	Documented float64 `json:"documented"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <entries.json>",
		Short: "Check that every correction is documented in its ledger",
		Long: `Check, for every entry, that the energy correction equals the sum of
its ledger. Exits with status 1 if any entry has an undocumented
correction.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, entriesPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	entries, err := loadEntries(entriesPath)
	if err != nil {
		return failLoad(formatter, err)
	}
	logger.Debug("checking ledgers", "count", len(entries), "path", entriesPath)

	result := ValidationResult{Valid: true, Checked: len(entries)}
	for _, e := range entries {
		if w := compat.CheckLedger(e); w != nil {
			result.Valid = false
			result.Mismatches = append(result.Mismatches, LedgerMismatch{
				EntryID:    w.EntryID,
				Correction: w.Correction,
				Documented: w.Documented,
			})
		}
	}

	if result.Valid {
		return formatter.Emit(result)
	}
	err = fmt.Errorf("%d of %d entries have undocumented corrections", len(result.Mismatches), result.Checked)
	return formatter.Reject(ExitFailure, ErrCodeLedger, err, result)
}

// WriteText implements Report.
func (r ValidationResult) WriteText(w io.Writer) {
	if r.Valid {
		fmt.Fprintf(w, "✓ All %d entries have documented corrections\n", r.Checked)
		return
	}
	fmt.Fprintln(w, "✗ Validation failed")
	for _, m := range r.Mismatches {
		fmt.Fprintf(w, "  %s: correction %.6f eV, ledger documents %.6f eV\n",
			m.EntryID, m.Correction, m.Documented)
	}
}
