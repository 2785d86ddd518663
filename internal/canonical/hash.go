package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/ecompat/internal/entry"
)

// Domain prefixes for fingerprints. The version suffix allows algorithm
// migration.
const (
	DomainLedger = "ecompat/ledger/v1"
	DomainScheme = "ecompat/scheme/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// LedgerFingerprint hashes an entry ledger. A nil and an empty ledger
// hash the same.
func LedgerFingerprint(l entry.Ledger) (string, error) {
	if l == nil {
		l = entry.Ledger{}
	}
	data, err := Marshal(map[string]map[string]float64(l))
	if err != nil {
		return "", fmt.Errorf("LedgerFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainLedger, data), nil
}

// SchemeFingerprint hashes a scheme's identity: the engine name, clean
// mode and the ordered component names.
func SchemeFingerprint(name string, clean bool, components []string) (string, error) {
	comps := make([]any, len(components))
	for i, c := range components {
		comps[i] = c
	}
	data, err := Marshal(map[string]any{
		"name":       name,
		"clean":      clean,
		"components": comps,
	})
	if err != nil {
		return "", fmt.Errorf("SchemeFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainScheme, data), nil
}
