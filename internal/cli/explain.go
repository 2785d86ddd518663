package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ecompat/internal/compat"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	SchemeOptions
	EntryID string
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <entries.json>",
		Short: "Show how a scheme would correct each entry",
		Long: `Show, per entry, every correction the scheme would apply and the
resulting energy, or why the entry would be rejected. Entries are not
modified.

Examples:
  ecompat explain entries.json --entry mp-19770
  ecompat explain entries.json --preset mit --scheme mit --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}

	opts.SchemeOptions.addFlags(cmd)
	cmd.Flags().StringVar(&opts.EntryID, "entry", "", "explain only this entry")

	return cmd
}

func runExplain(opts *ExplainOptions, entriesPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	entries, err := loadEntries(entriesPath)
	if err != nil {
		return failLoad(formatter, err)
	}

	built, err := opts.SchemeOptions.build(formatter, logger)
	if err != nil {
		return err
	}

	explanations := explanationReport{}
	for _, e := range entries {
		if opts.EntryID != "" && e.ID != opts.EntryID {
			continue
		}
		explanations = append(explanations, built.engine.Explain(e))
	}
	if opts.EntryID != "" && len(explanations) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeUnknownEntry,
			fmt.Errorf("no entry %q in %s", opts.EntryID, entriesPath))
	}

	return formatter.Emit(explanations)
}

// explanationReport is the explain command's report: one explanation per
// selected entry, in file order.
type explanationReport []compat.Explanation

// WriteText implements Report.
func (r explanationReport) WriteText(w io.Writer) {
	for i, ex := range r {
		if i > 0 {
			fmt.Fprintln(w)
		}
		writeExplanation(w, ex)
	}
}

func writeExplanation(w io.Writer, ex compat.Explanation) {
	fmt.Fprintf(w, "%s %s under %s\n", ex.EntryID, ex.Formula, ex.Compatibility)
	for _, warning := range ex.Warnings {
		fmt.Fprintf(w, "  ! %s\n", warning)
	}
	fmt.Fprintf(w, "  Uncorrected energy: %.6f eV\n", ex.UncorrectedEnergy)
	for _, c := range ex.Corrections {
		fmt.Fprintf(w, "  %-45s %12.6f eV\n", c.Name, c.Value)
	}
	if ex.CorrectedEnergy == nil {
		fmt.Fprintf(w, "  ✗ Rejected: %s\n", ex.Rejection)
		return
	}
	fmt.Fprintf(w, "  Corrected energy:   %.6f eV\n", *ex.CorrectedEnergy)
}
