package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ecompat/internal/canonical"
	"github.com/roach88/ecompat/internal/compat"
	"github.com/roach88/ecompat/internal/entry"
	"github.com/roach88/ecompat/internal/store"
)

// ProcessOptions holds flags for the process command.
type ProcessOptions struct {
	*RootOptions
	SchemeOptions
	Database string
	Output   string
}

// ProcessResult summarises a processed batch.
type ProcessResult struct {
	Scheme   string         `json:"scheme"`
	Clean    bool           `json:"clean"`
	Total    int            `json:"total"`
	Accepted int            `json:"accepted"`
	Rejected []Rejection    `json:"rejected"`
	RunID    string         `json:"run_id,omitempty"`
	Output   string         `json:"output,omitempty"`
	Entries  []*entry.Entry `json:"entries,omitempty"`
}

// Rejection identifies a dropped entry and why.
type Rejection struct {
	EntryID string `json:"entry_id"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason"`
}

// NewProcessCommand creates the process command.
func NewProcessCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProcessOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "process <entries.json>",
		Short: "Apply a correction scheme to entries",
		Long: `Apply a correction scheme to every entry and keep the compatible ones.

Rejected entries are dropped from the output and listed with the reason.
With --db the run and every entry outcome are recorded for later audit.

Examples:
  ecompat process entries.json
  ecompat process entries.json --preset mit --scheme mit-aqueous -o corrected.json
  ecompat process corrected.json --scheme aqueous --db audit.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(opts, args[0], cmd)
		},
	}

	opts.SchemeOptions.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write accepted entries to this file")

	return cmd
}

func runProcess(opts *ProcessOptions, entriesPath string, cmd *cobra.Command) error {
	ctx := context.Background()
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
	engine := built.engine

	logger.Debug("processing entries", "count", len(entries), "scheme", describeScheme(engine))
	outcomes := engine.Process(entries)

	result := ProcessResult{
		Scheme:   engine.Name(),
		Clean:    engine.Clean(),
		Total:    len(entries),
		Rejected: []Rejection{},
	}
	var accepted []*entry.Entry
	for _, o := range outcomes {
		if o.Accepted() {
			accepted = append(accepted, o.Entry)
			continue
		}
		result.Rejected = append(result.Rejected, newRejection(o))
	}
	result.Accepted = len(accepted)

	if opts.Database != "" {
		runID, err := recordRun(ctx, opts.Database, built, outcomes)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err)
		}
		result.RunID = runID
		logger.Info("run recorded", "run_id", runID, "db", opts.Database)
	}

	if opts.Output != "" {
		if err := writeEntries(opts.Output, accepted); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
		}
		result.Output = opts.Output
	} else {
		result.Entries = accepted
		if result.Entries == nil {
			result.Entries = []*entry.Entry{}
		}
	}

	return formatter.Emit(result)
}

func newRejection(o compat.Outcome) Rejection {
	r := Rejection{EntryID: o.Entry.ID, Reason: o.Err.Error()}
	var ce *entry.CompatibilityError
	if errors.As(o.Err, &ce) {
		r.Code = string(ce.Code)
	}
	return r
}

// recordRun stores the run and every outcome in input order.
func recordRun(ctx context.Context, dbPath string, built builtScheme, outcomes []compat.Outcome) (string, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	engine := built.engine
	fp, err := canonical.SchemeFingerprint(engine.Name(), engine.Clean(), componentNames(engine))
	if err != nil {
		return "", err
	}

	run, err := st.BeginRun(ctx, store.Run{
		Scheme:            engine.Name(),
		SchemeFingerprint: fp,
		Preset:            built.presetName(),
		Clean:             engine.Clean(),
	})
	if err != nil {
		return "", err
	}

	for i, o := range outcomes {
		r, err := store.NewResult(int64(i), o.Entry, o.Err)
		if err != nil {
			return "", err
		}
		if err := st.WriteResult(ctx, run.ID, r); err != nil {
			return "", err
		}
	}
	return run.ID, nil
}

// WriteText implements Report. Accepted entries are listed only when they
// were not written to a file.
func (r ProcessResult) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Scheme: %s\n", r.Scheme)
	fmt.Fprintf(w, "✓ %d of %d entries accepted\n", r.Accepted, r.Total)

	for _, e := range r.Entries {
		fmt.Fprintf(w, "  %-20s %-10s E=%.6f (correction %.6f)\n",
			e.ID, e.Composition.ReducedFormula(), e.Energy(), e.Correction)
	}

	if len(r.Rejected) > 0 {
		fmt.Fprintf(w, "✗ %d rejected\n", len(r.Rejected))
		for _, rej := range r.Rejected {
			fmt.Fprintf(w, "  %s: %s\n", rej.EntryID, rej.Reason)
		}
	}

	if r.Output != "" {
		fmt.Fprintf(w, "Wrote %s\n", r.Output)
	}
	if r.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", r.RunID)
	}
}
