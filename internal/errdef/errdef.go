// Package errdef defines the suggestion-carrying error type and exit codes used across mk8.
package errdef

import (
	"errors"
	"strings"
)

// Exit codes returned by the mk8 binary.
const (
	ExitSuccess       = 0
	ExitGeneral       = 1
	ExitCommand       = 2
	ExitValidation    = 3
	ExitPrerequisite  = 4
	ExitConfiguration = 5
	ExitInterrupt     = 130
)

// Error is an error carrying actionable remediation suggestions for the user.
type Error struct {
	Message     string
	Suggestions []string
	Code        int
	wrapped     error
}

// New constructs an Error with the given message and optional suggestions.
func New(message string, suggestions ...string) *Error {
	return &Error{Message: message, Suggestions: suggestions, Code: ExitCommand}
}

// Wrap constructs an Error around an underlying cause.
func Wrap(err error, message string, suggestions ...string) *Error {
	return &Error{Message: message, Suggestions: suggestions, Code: ExitCommand, wrapped: err}
}

// WithCode returns the error with its exit code replaced.
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.wrapped != nil {
		return e.Message + ": " + e.wrapped.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.wrapped
}

// Format renders the error message together with its suggestions.
func (e *Error) Format() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.Error())
	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:\n")
		for _, s := range e.Suggestions {
			b.WriteString("  - ")
			b.WriteString(s)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ExitCode returns the exit code for err: the code carried by an *Error in
// its chain, or ExitGeneral for any other error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ExitGeneral
}
