package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrTypeConnection indicates the live database could not be reached.
	// Fatal to the request; never retried.
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeIntrospection indicates the database catalog could not be read
	// (insufficient privileges, unsupported driver). Fatal to the request.
	ErrTypeIntrospection ErrorType = "introspection"
	// ErrTypeGeneration indicates the LLM was unavailable or returned an
	// unusable response.
	ErrTypeGeneration ErrorType = "generation"
	// ErrTypeExecution indicates the generated SQL failed to run. Drives
	// the retry loop.
	ErrTypeExecution ErrorType = "execution"
	// ErrTypeCacheCorruption indicates persisted cache state was unreadable.
	// Treated as an empty cache, never fatal to the request flow.
	ErrTypeCacheCorruption ErrorType = "cache_corruption"
	ErrTypeValidation      ErrorType = "validation"
	ErrTypeConfig          ErrorType = "config"
	ErrTypeInternal        ErrorType = "internal"
)

// Error represents a structured error with type and optional suggestions
type Error struct {
	Type        ErrorType
	Message     string
	Cause       error
	Suggestions []string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithSuggestion adds a suggestion for resolving the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// New creates a new structured error
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new structured error with formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with formatted message
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Type == errType
	}

	return false
}

// GetType returns the error type if it's a structured error
func GetType(err error) ErrorType {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Type
	}

	return ErrTypeInternal
}

// RootCause unwraps structured errors down to the innermost cause,
// returning the original error when nothing deeper exists
func RootCause(err error) error {
	for {
		var structErr *Error
		if !errors.As(err, &structErr) || structErr.Cause == nil {
			return err
		}

		err = structErr.Cause
	}
}

// NewConnectionError creates a connection error with standard suggestions
func NewConnectionError(cause error, target string) *Error {
	return Wrapf(cause, ErrTypeConnection, "cannot reach database %s", target).
		WithSuggestion("Check that the database is running and reachable").
		WithSuggestion("Verify host, port, and credentials in your configuration")
}
