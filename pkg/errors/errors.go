// Package errors provides structured error types for csrconv.
//
// This package defines error codes and types that enable:
//   - Consistent error reporting across the CLI and library entry points
//   - Machine-readable error codes for programmatic handling
//   - Enough context (dataset, pass, window, raw line) to diagnose a failed
//     conversion without re-running it
//
// # Error Codes
//
//   - MALFORMED_INPUT: a raw dataset row could not be parsed
//   - INCONSISTENT_DEGREE: a window emitted a different record count than Pass 1 counted
//   - IO_ERROR: reading the input or writing the output failed
//   - UNSUPPORTED_FORMAT: no adapter exists for the requested input format
//   - INVALID_INPUT / INVALID_CONFIG: option or catalogue validation failures
//   - INTERNAL_ERROR: unexpected internal errors
//
// All conversion errors are fatal to the job they occur in. None of them are
// retried: a malformed row stays malformed.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnsupportedFormat, "unknown format %q", name)
//	if errors.Is(err, errors.ErrCodeUnsupportedFormat) {
//	    // ...
//	}
//
//	err := errors.Wrap(errors.ErrCodeIO, origErr, "open %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	ErrCodeMalformedInput     Code = "MALFORMED_INPUT"
	ErrCodeInconsistentDegree Code = "INCONSISTENT_DEGREE"
	ErrCodeIO                 Code = "IO_ERROR"
	ErrCodeUnsupportedFormat  Code = "UNSUPPORTED_FORMAT"

	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// coder is implemented by the typed errors in this package that carry an
// implicit code instead of a Code field.
type coder interface {
	Code() Code
}

// Is reports whether err has the given error code.
// It walks the error chain and matches the first coded error it finds.
func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if no error in the chain carries a code.
func GetCode(err error) Code {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return e.Code
		case coder:
			return e.Code()
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// As is errors.As, re-exported so callers importing this package under the
// name errors keep access to it.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message and cause without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	if e, ok := err.(*Error); ok {
		if e.Cause != nil {
			return e.Message + ": " + e.Cause.Error()
		}
		return e.Message
	}
	return err.Error()
}

// MalformedInputError reports a raw dataset row that could not be parsed.
type MalformedInputError struct {
	Path   string // input file
	LineNo int    // 1-based line number in the raw file
	Line   string // the offending raw line
	Reason string // what was wrong with it
}

// Error implements the error interface.
func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input %s:%d: %s: %q", e.Path, e.LineNo, e.Reason, e.Line)
}

// Code returns the error code for this error type.
func (e *MalformedInputError) Code() Code {
	return ErrCodeMalformedInput
}

// InconsistentDegreeError reports that the records emitted for a node did not
// match the degree counted in Pass 1. It always indicates a bug.
type InconsistentDegreeError struct {
	Side string // "forward" or "reverse"
	Node int64  // dense node index
	Want int64  // degree from Pass 1
	Got  int64  // records emitted
}

// Error implements the error interface.
func (e *InconsistentDegreeError) Error() string {
	return fmt.Sprintf("inconsistent degree on %s side: node %d emitted %d records, offsets promise %d",
		e.Side, e.Node, e.Got, e.Want)
}

// Code returns the error code for this error type.
func (e *InconsistentDegreeError) Code() Code {
	return ErrCodeInconsistentDegree
}

// StageError attaches the position in the conversion to an underlying error.
// Pass 0 is the id indexing scan, pass 1 the degree count and passes 2..k the
// window re-scans; Lo and Hi are only meaningful for window passes.
type StageError struct {
	Dataset string
	Side    string
	Pass    int
	Lo, Hi  int64
	Err     error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	where := fmt.Sprintf("dataset %s: pass %d", e.Dataset, e.Pass)
	if e.Side != "" {
		where = fmt.Sprintf("dataset %s: %s side: pass %d", e.Dataset, e.Side, e.Pass)
	}
	if e.Hi > e.Lo {
		where += fmt.Sprintf(" window [%d,%d)", e.Lo, e.Hi)
	}
	return fmt.Sprintf("%s: %v", where, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}
