package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess           = 0 // Successful execution
	ExitFailure           = 1 // Anomalies found with --fail-on-anomaly
	ExitCommandError      = 2 // Command error (bad arguments, config, database not found, etc.)
	ExitSourceUnavailable = 3 // A source could not be read; retry later
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitCommandError (2) if the error is not an ExitError: flag parsing
// and other usage errors must not look like an audit failure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// Error codes reported in CLIError.Code.
const (
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	CodeAuditFailed       = "AUDIT_FAILED"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInvalidTaskID     = "INVALID_TASK_ID"
	CodeNotFound          = "NOT_FOUND"
	CodeStore             = "STORE_ERROR"
	CodeCommand           = "COMMAND_ERROR"
)

// OutputFormatter writes command results as text or as a JSON envelope.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose output goes here so JSON stays parseable
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status  string    `json:"status"`             // "ok" or "error"
	Data    any       `json:"data,omitempty"`     // payload, also set on partial failure
	Error   *CLIError `json:"error,omitempty"`    // error details
	TraceID string    `json:"trace_id,omitempty"` // optional request correlation
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "SOURCE_UNAVAILABLE", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success writes data as an ok envelope in JSON mode. In text mode it calls
// text to render data.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// Partial writes data that comes with an error, such as a batch where some
// tasks could not be audited. Text mode renders data only; the error reaches
// the user through the command's exit error.
func (f *OutputFormatter) Partial(data any, cliErr *CLIError, text func(w io.Writer)) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "error", Data: data, Error: cliErr})
	}
	text(f.Writer)
	return nil
}

// Error reports err under code and returns err, so a command can end with
// `return f.Error(code, err)`. In JSON mode an error envelope is written;
// in text mode nothing is written here and main prints the error.
func (f *OutputFormatter) Error(code string, err error) error {
	if f.Format == "json" {
		var exitErr *ExitError
		var details any
		if errors.As(err, &exitErr) && exitErr.Err != nil {
			details = exitErr.Err.Error()
		}
		msg := err.Error()
		if exitErr != nil {
			msg = exitErr.Message
		}
		_ = f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: msg, Details: details},
		})
	}
	return err
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}
