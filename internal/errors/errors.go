package errors

import (
	"errors"
	"fmt"
)

// Error codes for programmatic handling.
const (
	CodeValidation    = "VALIDATION"
	CodeNotFound      = "NOT_FOUND"
	CodeConfigInvalid = "CONFIG_INVALID"
	CodeInternal      = "INTERNAL"
)

// RelayError is a structured error with a code and actionable suggestion.
type RelayError struct {
	Code       string // machine-readable code (e.g. NOT_FOUND)
	Message    string // human-readable description
	Suggestion string // actionable fix
	Err        error  // wrapped underlying error
}

// Error implements the error interface.
func (e *RelayError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap supports errors.Is / errors.As.
func (e *RelayError) Unwrap() error {
	return e.Err
}

// New creates a RelayError with the given code and message.
func New(code, message string) *RelayError {
	return &RelayError{Code: code, Message: message}
}

// Newf creates a RelayError with a formatted message.
func Newf(code, format string, args ...any) *RelayError {
	return &RelayError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a RelayError wrapping an existing error.
func Wrap(code, message string, err error) *RelayError {
	return &RelayError{Code: code, Message: message, Err: err}
}

// WithSuggestion returns a copy with the suggestion set.
func (e *RelayError) WithSuggestion(suggestion string) *RelayError {
	e.Suggestion = suggestion
	return e
}

// Is checks whether target matches this error's code.
func (e *RelayError) Is(target error) bool {
	var re *RelayError
	if errors.As(target, &re) {
		return e.Code == re.Code
	}
	return false
}

// AsCode extracts the RelayError code from an error, or "" if not a RelayError.
func AsCode(err error) string {
	var re *RelayError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// Suggestion extracts the suggestion from an error, or "" if not a RelayError.
func Suggestion(err error) string {
	var re *RelayError
	if errors.As(err, &re) {
		return re.Suggestion
	}
	return ""
}

// IsValidation reports whether err carries the VALIDATION code.
func IsValidation(err error) bool {
	return AsCode(err) == CodeValidation
}

// IsNotFound reports whether err carries the NOT_FOUND code.
func IsNotFound(err error) bool {
	return AsCode(err) == CodeNotFound
}
