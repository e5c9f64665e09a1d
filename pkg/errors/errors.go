// Package errors defines the sentinel errors shared across the pipelines
// and thin wrapping helpers so call sites need a single import.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal error.
	ErrInternal = errors.New("internal error")

	// ErrExternal indicates a failure in an external service call.
	ErrExternal = errors.New("external service error")

	// ErrUnsupported indicates an operation the backend cannot perform.
	ErrUnsupported = errors.New("operation not supported")
)

// Persistence errors. Schema validation rejects table and column names it
// does not know about rather than passing them through to the backend.
var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
)

// ErrAgentResponse indicates a model response that could not be parsed or
// validated into the expected structured shape.
var ErrAgentResponse = errors.New("agent response does not match expected shape")

// Trade execution errors.
var (
	// ErrInsufficientCash indicates a buy exceeding the available cash balance.
	ErrInsufficientCash = errors.New("insufficient cash")

	// ErrNoPosition indicates a sell against a ticker with no open position.
	ErrNoPosition = errors.New("no open position")

	// ErrMissingPrice indicates a decision without a usable market price.
	ErrMissingPrice = errors.New("missing market price")
)

// New returns a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Is reports whether err is or wraps target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target's type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with message. Returns nil when err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf annotates err with a formatted message. Returns nil when err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
