package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/ecompat/internal/entry"
)

// ReadRun returns a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, scheme, scheme_fingerprint, preset, clean, created_at
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ReadRunResults returns every result of a run in entry order, each with
// its stored ledger.
//
// Returns an empty slice (not nil) if the run has no results.
func (s *Store) ReadRunResults(ctx context.Context, runID string) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, seq, formula, accepted, reason, uncorrected_energy, correction, ledger_fingerprint
		FROM results
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := []Result{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}

	for i := range results {
		ledger, err := s.ReadAdjustments(ctx, runID, results[i].EntryID)
		if err != nil {
			return nil, err
		}
		results[i].Adjustments = ledger
	}
	return results, nil
}

// ReadEntryHistory returns every stored outcome for an entry, oldest run
// first. Ordering is deterministic: ORDER BY run seq, then result id.
//
// Returns an empty slice (not nil) if the entry was never recorded.
func (s *Store) ReadEntryHistory(ctx context.Context, entryID string) ([]HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.seq, r.scheme, r.scheme_fingerprint, r.preset, r.clean, r.created_at,
		       x.entry_id, x.seq, x.formula, x.accepted, x.reason, x.uncorrected_energy, x.correction, x.ledger_fingerprint
		FROM results x
		JOIN runs r ON x.run_id = r.id
		WHERE x.entry_id = ?
		ORDER BY r.seq ASC, x.id ASC
	`, entryID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	history := []HistoryRecord{}
	for rows.Next() {
		var (
			rec       HistoryRecord
			createdAt string
		)
		err := rows.Scan(
			&rec.Run.ID, &rec.Run.Seq, &rec.Run.Scheme, &rec.Run.SchemeFingerprint,
			&rec.Run.Preset, &rec.Run.Clean, &createdAt,
			&rec.Result.EntryID, &rec.Result.Seq, &rec.Result.Formula, &rec.Result.Accepted,
			&rec.Result.Reason, &rec.Result.UncorrectedEnergy, &rec.Result.Correction,
			&rec.Result.LedgerFingerprint,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if rec.Run.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		history = append(history, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	for i := range history {
		ledger, err := s.ReadAdjustments(ctx, history[i].Run.ID, entryID)
		if err != nil {
			return nil, err
		}
		history[i].Result.Adjustments = ledger
	}
	return history, nil
}

// ReadAdjustments rebuilds the ledger stored for an entry of a run.
// Returns nil if no rows were stored.
func (s *Store) ReadAdjustments(ctx context.Context, runID, entryID string) (entry.Ledger, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, label, value
		FROM adjustments
		WHERE run_id = ? AND entry_id = ?
		ORDER BY id ASC
	`, runID, entryID)
	if err != nil {
		return nil, fmt.Errorf("query adjustments: %w", err)
	}
	defer rows.Close()

	var ledger entry.Ledger
	for rows.Next() {
		var (
			source, label string
			value         float64
		)
		if err := rows.Scan(&source, &label, &value); err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		if ledger == nil {
			ledger = entry.Ledger{}
		}
		if ledger[source] == nil {
			ledger[source] = map[string]float64{}
		}
		ledger[source][label] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate adjustments: %w", err)
	}
	return ledger, nil
}

func scanRun(row *sql.Row) (Run, error) {
	var (
		run       Run
		createdAt string
	)
	err := row.Scan(&run.ID, &run.Seq, &run.Scheme, &run.SchemeFingerprint, &run.Preset, &run.Clean, &createdAt)
	if err != nil {
		return Run{}, err
	}
	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return Run{}, err
	}
	return run, nil
}

func scanResult(rows *sql.Rows) (Result, error) {
	var r Result
	err := rows.Scan(
		&r.EntryID, &r.Seq, &r.Formula, &r.Accepted, &r.Reason,
		&r.UncorrectedEnergy, &r.Correction, &r.LedgerFingerprint,
	)
	if err != nil {
		return Result{}, fmt.Errorf("scan result: %w", err)
	}
	return r, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
	}
	return t, nil
}
