package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ecompat/internal/canonical"
	"github.com/roach88/ecompat/internal/entry"
	"github.com/roach88/ecompat/internal/testutil"
)

func testRun() Run {
	return Run{
		Scheme:            "MaterialsProjectCompatibility",
		SchemeFingerprint: "fp",
		Preset:            "MP",
		Clean:             true,
	}
}

func acceptedResult(t *testing.T, seq int64, id string) Result {
	t.Helper()
	e := testutil.NewEntry(id, "Fe2O3", -38.0,
		testutil.Applied("MaterialsProjectCompatibility", "MP Anion Correction", -2.1),
		testutil.Applied("MaterialsProjectCompatibility", "MP Advanced Correction", -5.466),
	)
	r, err := NewResult(seq, e, nil)
	require.NoError(t, err)
	return r
}

func TestBeginRun_AssignsIDSeqAndTime(t *testing.T) {
	s := createTestStore(t, "run-1", "run-2")
	ctx := context.Background()

	first, err := s.BeginRun(ctx, testRun())
	require.NoError(t, err)
	assert.Equal(t, "run-1", first.ID)
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, testutil.Epoch, first.CreatedAt)

	second, err := s.BeginRun(ctx, testRun())
	require.NoError(t, err)
	assert.Equal(t, "run-2", second.ID)
	assert.Equal(t, int64(2), second.Seq)

	stored, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, first, stored)
}

func TestBeginRun_KeepsCallerID(t *testing.T) {
	s := createTestStore(t)

	run := testRun()
	run.ID = "explicit"
	got, err := s.BeginRun(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, "explicit", got.ID)
}

func TestBeginRun_DuplicateIDFails(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := testRun()
	run.ID = "dup"
	_, err := s.BeginRun(ctx, run)
	require.NoError(t, err)
	_, err = s.BeginRun(ctx, run)
	assert.Error(t, err)
}

func TestBeginRun_UUIDv7ByDefault(t *testing.T) {
	s := createTestStore(t)
	s.ids = UUIDv7Generator{}

	run, err := s.BeginRun(context.Background(), testRun())
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, byte('7'), run.ID[14], "version nibble")
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "nope")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestNewResult(t *testing.T) {
	r := acceptedResult(t, 3, "fe2o3")

	assert.Equal(t, "fe2o3", r.EntryID)
	assert.Equal(t, int64(3), r.Seq)
	assert.Equal(t, "Fe2O3", r.Formula)
	assert.True(t, r.Accepted)
	assert.Empty(t, r.Reason)
	assert.InDelta(t, -7.566, r.Correction, 1e-12)

	want, err := canonical.LedgerFingerprint(r.Adjustments)
	require.NoError(t, err)
	assert.Equal(t, want, r.LedgerFingerprint)
}

func TestNewResult_Rejected(t *testing.T) {
	e := testutil.NewEntry("feo", "FeO", -10.0)
	r, err := NewResult(0, e, entry.NewIncompatibleError("no potcar_symbols"))
	require.NoError(t, err)

	assert.False(t, r.Accepted)
	assert.Contains(t, r.Reason, "no potcar_symbols")
	assert.Nil(t, r.Adjustments)

	empty, err := canonical.LedgerFingerprint(nil)
	require.NoError(t, err)
	assert.Equal(t, empty, r.LedgerFingerprint)
}

func TestWriteResult_Idempotent(t *testing.T) {
	s := createTestStore(t, "run-1")
	ctx := context.Background()

	run, err := s.BeginRun(ctx, testRun())
	require.NoError(t, err)

	r := acceptedResult(t, 0, "fe2o3")
	require.NoError(t, s.WriteResult(ctx, run.ID, r))
	require.NoError(t, s.WriteResult(ctx, run.ID, r))

	results, err := s.ReadRunResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, r, results[0])

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM adjustments`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestWriteResult_RejectedStoresNoAdjustments(t *testing.T) {
	s := createTestStore(t, "run-1")
	ctx := context.Background()

	run, err := s.BeginRun(ctx, testRun())
	require.NoError(t, err)

	e := testutil.NewEntry("feo", "FeO", -10.0)
	r, err := NewResult(0, e, entry.NewIncompatibleError("bad"))
	require.NoError(t, err)
	require.NoError(t, s.WriteResult(ctx, run.ID, r))

	ledger, err := s.ReadAdjustments(ctx, run.ID, "feo")
	require.NoError(t, err)
	assert.Nil(t, ledger)
}

func TestWriteResult_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteResult(context.Background(), "missing", acceptedResult(t, 0, "fe2o3"))
	assert.Error(t, err)
}

func TestWriteAdjustments_KeepsFirstValue(t *testing.T) {
	s := createTestStore(t, "run-1")
	ctx := context.Background()

	run, err := s.BeginRun(ctx, testRun())
	require.NoError(t, err)

	require.NoError(t, s.WriteAdjustments(ctx, run.ID, "x", entry.Ledger{"S": {"a": 1}}))
	require.NoError(t, s.WriteAdjustments(ctx, run.ID, "x", entry.Ledger{"S": {"a": 2, "b": 3}}))

	ledger, err := s.ReadAdjustments(ctx, run.ID, "x")
	require.NoError(t, err)
	assert.Equal(t, entry.Ledger{"S": {"a": 1, "b": 3}}, ledger)
}
