package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ecompat/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
}

// HistoryResult holds every stored outcome for one entry.
type HistoryResult struct {
	EntryID string                `json:"entry_id"`
	Records []store.HistoryRecord `json:"records"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <entry-id>",
		Short: "Show recorded outcomes for an entry",
		Long: `Show every recorded run outcome for an entry, oldest run first.

Runs are recorded by "ecompat process --db".

Examples:
  ecompat history mp-19770 --db audit.db
  ecompat history mp-19770 --db audit.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, entryID string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Errorf("failed to open database: %w", err))
	}
	defer st.Close()

	records, err := st.ReadEntryHistory(ctx, entryID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err)
	}

	return formatter.Emit(HistoryResult{EntryID: entryID, Records: records})
}

// WriteText implements Report.
func (r HistoryResult) WriteText(w io.Writer) {
	if len(r.Records) == 0 {
		fmt.Fprintf(w, "No runs recorded for entry: %s\n", r.EntryID)
		return
	}

	fmt.Fprintf(w, "History for %s (%d runs)\n", r.EntryID, len(r.Records))
	for _, rec := range r.Records {
		status := "✓"
		if !rec.Result.Accepted {
			status = "✗"
		}
		fmt.Fprintf(w, "%s run %d %s [%s] %s\n",
			status, rec.Run.Seq, rec.Run.ID, rec.Run.Scheme, rec.Run.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
		if !rec.Result.Accepted {
			fmt.Fprintf(w, "    %s\n", rec.Result.Reason)
			continue
		}
		fmt.Fprintf(w, "    correction %.6f eV, ledger %s\n", rec.Result.Correction, shortHash(rec.Result.LedgerFingerprint))
		for _, source := range rec.Result.Adjustments.Sources() {
			for _, label := range rec.Result.Adjustments.Labels(source) {
				fmt.Fprintf(w, "    %s / %s: %.6f\n", source, label, rec.Result.Adjustments[source][label])
			}
		}
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
