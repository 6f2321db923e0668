package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeSyntax            = "SYNTAX_ERROR"
	ErrCodeSecurity          = "SECURITY_ERROR"
	ErrCodeUnsupportedNode   = "UNSUPPORTED_NODE"
	ErrCodeUnknownIdentifier = "UNKNOWN_IDENTIFIER"
	ErrCodeEvaluation        = "EVALUATION_ERROR"
	ErrCodeCapability        = "CAPABILITY_ERROR"
	ErrCodeLimitExceeded     = "LIMIT_EXCEEDED"
	ErrCodeCancelled         = "CANCELLED"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeCycleDetected     = "CYCLE_DETECTED"
	ErrCodeInvalidCron       = "INVALID_CRON"
	ErrCodeRuleViolation     = "RULE_VIOLATION"
)

// Sentinels for errors.Is dispatch. An *Error matches the sentinel with the same code.
var (
	ErrSyntax            = &Error{Code: ErrCodeSyntax}
	ErrSecurity          = &Error{Code: ErrCodeSecurity}
	ErrUnsupportedNode   = &Error{Code: ErrCodeUnsupportedNode}
	ErrUnknownIdentifier = &Error{Code: ErrCodeUnknownIdentifier}
	ErrEvaluation        = &Error{Code: ErrCodeEvaluation}
	ErrCapability        = &Error{Code: ErrCodeCapability}
	ErrLimitExceeded     = &Error{Code: ErrCodeLimitExceeded}
	ErrCancelled         = &Error{Code: ErrCodeCancelled}
	ErrValidation        = &Error{Code: ErrCodeValidation}
	ErrNotFound          = &Error{Code: ErrCodeNotFound}
)

// Location is a 1-based line/column position in source text.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Error is the structured error type for all wfscript operations.
type Error struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Location *Location      `json:"location,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Cause    error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Location != nil {
		return fmt.Sprintf("[%s] %s (%s)", e.Code, e.Message, e.Location)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithLocation attaches a source location.
func (e *Error) WithLocation(loc Location) *Error {
	e.Location = &loc
	return e
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// IsUserFacing reports whether err is one of the language-level failures
// (syntax, security, unsupported syntax, unknown identifier) that should be
// surfaced verbatim to whoever wrote the source.
func IsUserFacing(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case ErrCodeSyntax, ErrCodeSecurity, ErrCodeUnsupportedNode, ErrCodeUnknownIdentifier:
		return true
	}
	return false
}
