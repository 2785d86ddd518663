package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Ledger validation found undocumented corrections
	ExitCommandError = 2 // Bad input, preset, scheme or database
)

// Error codes reported in CLI error envelopes. Preset loading codes
// (E006, E120, E121) come from package config.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeLoadFailed   = "E004" // Entries file could not be parsed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeWriteFailed  = "E007" // Corrected entries could not be written
	ErrCodeScheme       = "E130" // Scheme could not be built
	ErrCodeStore        = "E131" // Database error
	ErrCodeLedger       = "E132" // Ledger does not match correction
	ErrCodeUnknownEntry = "E133" // --entry names no entry in the file
)

// ExitError is a failure that has already been reported to the user. It
// carries the process exit status and the reported error code.
type ExitError struct {
	Status int    // ExitFailure or ExitCommandError
	Code   string // E-code shown in the report
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// GetExitCode extracts the exit status from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Status
	}
	return ExitFailure
}

// Report is a command result. Text mode calls WriteText; JSON mode encodes
// the report itself as the envelope payload.
type Report interface {
	WriteText(w io.Writer)
}

// CLIResponse is the JSON envelope written for every command.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // the command's report
	Error  *CLIError   `json:"error,omitempty"` // failure details
}

// CLIError describes a failed command.
type CLIError struct {
	Code    string      `json:"code"`              // "E005", "E132", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // report of a failed check
}

// OutputFormatter writes reports and failures as text or JSON envelopes.
type OutputFormatter struct {
	JSON   bool
	Writer io.Writer
}

// Emit writes a successful report.
func (f *OutputFormatter) Emit(r Report) error {
	if f.JSON {
		return f.encode(CLIResponse{Status: "ok", Data: r})
	}
	r.WriteText(f.Writer)
	return nil
}

// Fail reports err under code and returns it as an ExitError.
func (f *OutputFormatter) Fail(status int, code string, err error) error {
	if f.JSON {
		_ = f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error()},
		})
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %v\n", code, err)
	}
	return &ExitError{Status: status, Code: code, Err: err}
}

// Reject reports a check that ran but failed. Text mode writes the report
// in place of an error line; JSON mode attaches it as the error details.
func (f *OutputFormatter) Reject(status int, code string, err error, r Report) error {
	if f.JSON {
		_ = f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error(), Details: r},
		})
	} else {
		r.WriteText(f.Writer)
	}
	return &ExitError{Status: status, Code: code, Err: err}
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}
