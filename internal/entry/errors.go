package entry

import (
	"errors"
	"fmt"
)

// CompatibilityError reports why an entry cannot be corrected under a
// scheme. The entry is dropped from batch results; the error never aborts
// a batch.
type CompatibilityError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// EntryID identifies the affected entry, when known.
	EntryID string

	// Rule names the correction rule that rejected the entry.
	Rule string

	// Source and Label identify the ledger slot for conflicts.
	Source string
	Label  string
}

// ErrorCode categorizes compatibility errors.
type ErrorCode string

const (
	// ErrCodeIncompatible indicates the entry does not satisfy a rule's
	// preconditions (missing metadata, mismatched method identifiers or
	// Hubbard parameters, unsupported run type).
	ErrCodeIncompatible ErrorCode = "INCOMPATIBLE_ENTRY"

	// ErrCodeConflict indicates a ledger label is already recorded with a
	// different value.
	ErrCodeConflict ErrorCode = "CONFLICTING_CORRECTION"
)

// Error implements the error interface.
func (e *CompatibilityError) Error() string {
	switch {
	case e.EntryID != "" && e.Rule != "":
		return fmt.Sprintf("%s: %s (entry=%s, rule=%s)", e.Code, e.Message, e.EntryID, e.Rule)
	case e.EntryID != "":
		return fmt.Sprintf("%s: %s (entry=%s)", e.Code, e.Message, e.EntryID)
	case e.Rule != "":
		return fmt.Sprintf("%s: %s (rule=%s)", e.Code, e.Message, e.Rule)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsIncompatible reports whether err is an INCOMPATIBLE_ENTRY error.
func IsIncompatible(err error) bool {
	var ce *CompatibilityError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeIncompatible
	}
	return false
}

// IsConflict reports whether err is a CONFLICTING_CORRECTION error.
func IsConflict(err error) bool {
	var ce *CompatibilityError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeConflict
	}
	return false
}

// IsRejection reports whether err rejects an entry, as opposed to an
// unexpected failure.
func IsRejection(err error) bool {
	var ce *CompatibilityError
	return errors.As(err, &ce)
}

// NewIncompatibleError creates an INCOMPATIBLE_ENTRY error.
func NewIncompatibleError(format string, args ...any) *CompatibilityError {
	return &CompatibilityError{
		Code:    ErrCodeIncompatible,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewConflictError creates a CONFLICTING_CORRECTION error for a label
// recorded as stored but recomputed as computed.
func NewConflictError(source, label string, stored, computed float64) *CompatibilityError {
	return &CompatibilityError{
		Code: ErrCodeConflict,
		Message: fmt.Sprintf("adjustment %q already recorded as %.6f eV, recomputed as %.6f eV",
			label, stored, computed),
		Source: source,
		Label:  label,
	}
}
