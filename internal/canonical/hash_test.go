package canonical

import (
	"encoding/hex"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ecompat/internal/entry"
)

func TestLedgerFingerprint_Deterministic(t *testing.T) {
	build := func() entry.Ledger {
		l := entry.Ledger{}
		l["B"] = map[string]float64{"y": 2, "x": 1}
		l["A"] = map[string]float64{"z": -0.5}
		return l
	}

	h1, err := LedgerFingerprint(build())
	require.NoError(t, err)
	h2, err := LedgerFingerprint(build())
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	_, err = hex.DecodeString(h1)
	assert.NoError(t, err)
}

func TestLedgerFingerprint_ChangesWithContent(t *testing.T) {
	base, err := LedgerFingerprint(entry.Ledger{"A": {"x": 1}})
	require.NoError(t, err)

	for name, l := range map[string]entry.Ledger{
		"value":  {"A": {"x": 1.000001}},
		"label":  {"A": {"y": 1}},
		"source": {"B": {"x": 1}},
		"extra":  {"A": {"x": 1, "y": 0}},
	} {
		h, err := LedgerFingerprint(l)
		require.NoError(t, err)
		assert.NotEqual(t, base, h, name)
	}
}

func TestLedgerFingerprint_NilEqualsEmpty(t *testing.T) {
	h1, err := LedgerFingerprint(nil)
	require.NoError(t, err)
	h2, err := LedgerFingerprint(entry.Ledger{})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestLedgerFingerprint_RejectsNaN(t *testing.T) {
	_, err := LedgerFingerprint(entry.Ledger{"A": {"x": math.NaN()}})
	assert.Error(t, err)
}

func TestSchemeFingerprint(t *testing.T) {
	comps := []string{"MP Gas Correction", "MP Anion Correction"}
	h1, err := SchemeFingerprint("MaterialsProjectCompatibility", true, comps)
	require.NoError(t, err)

	h2, err := SchemeFingerprint("MaterialsProjectCompatibility", false, comps)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	h3, err := SchemeFingerprint("MaterialsProjectCompatibility", true,
		[]string{"MP Anion Correction", "MP Gas Correction"})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3, "component order is part of the identity")
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`{"A":{"x":1}}`)
	assert.NotEqual(t, hashWithDomain(DomainLedger, data), hashWithDomain(DomainScheme, data))
	assert.NotEqual(t, hashWithDomain("foo", []byte("bar")), hashWithDomain("foob", []byte("ar")))
}
