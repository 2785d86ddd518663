package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/ecompat/internal/entry"
)

// BeginRun records a new run and returns it with ID, Seq and CreatedAt
// filled in. A caller-supplied ID is kept; otherwise one is generated.
//
// Seq is one more than the highest stored run seq, so runs are totally
// ordered within a database.
func (s *Store) BeginRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = s.ids.Generate()
	}
	run.CreatedAt = s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`,
	).Scan(&run.Seq); err != nil {
		return Run{}, fmt.Errorf("begin run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, scheme, scheme_fingerprint, preset, clean, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Seq,
		run.Scheme,
		run.SchemeFingerprint,
		run.Preset,
		run.Clean,
		run.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("begin run: commit: %w", err)
	}
	return run, nil
}

// WriteResult records an entry outcome and, for accepted entries, its
// ledger rows, in a single transaction.
//
// Uses ON CONFLICT DO NOTHING for idempotency - writing the same entry of
// the same run twice is silently ignored.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteResult(ctx context.Context, runID string, r Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write result: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO results
		(run_id, entry_id, seq, formula, accepted, reason, uncorrected_energy, correction, ledger_fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, entry_id) DO NOTHING
	`,
		runID,
		r.EntryID,
		r.Seq,
		r.Formula,
		r.Accepted,
		r.Reason,
		r.UncorrectedEnergy,
		r.Correction,
		r.LedgerFingerprint,
	)
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	if r.Accepted {
		if err := writeAdjustments(ctx, tx, runID, r.EntryID, r.Adjustments); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write result: commit: %w", err)
	}
	return nil
}

// WriteAdjustments records one row per (source, label) of ledger.
// Uses ON CONFLICT DO NOTHING - rows already recorded for this run and
// entry are kept.
func (s *Store) WriteAdjustments(ctx context.Context, runID, entryID string, ledger entry.Ledger) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write adjustments: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := writeAdjustments(ctx, tx, runID, entryID, ledger); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write adjustments: commit: %w", err)
	}
	return nil
}

func writeAdjustments(ctx context.Context, tx *sql.Tx, runID, entryID string, ledger entry.Ledger) error {
	for _, source := range ledger.Sources() {
		for _, label := range ledger.Labels(source) {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO adjustments
				(run_id, entry_id, source, label, value)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(run_id, entry_id, source, label) DO NOTHING
			`,
				runID,
				entryID,
				source,
				label,
				ledger[source][label],
			)
			if err != nil {
				return fmt.Errorf("write adjustments: %s/%s: %w", source, label, err)
			}
		}
	}
	return nil
}
