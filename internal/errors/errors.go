// Package errors consolidates error definitions for the entire project.
//
// This file provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - Error wrapping utilities
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Parse errors for unit-convertible values
	ErrInvalidUnit   = errors.New("invalid unit")
	ErrInvalidNumber = errors.New("invalid number")

	// Configuration tree errors
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidArgument = errors.New("invalid argument")

	// Record codec errors
	ErrUnsupportedFormatVersion = errors.New("format version not given for headerless stream")
	ErrMalformedRecord          = errors.New("malformed record")
	ErrUnknownFileType          = errors.New("unknown result file type")
)

// ============================================================================
// Category checks
// ============================================================================

// IsInvalidInput reports whether err stems from unparsable user input:
// a bad unit tag, malformed numeric text, or an absent required key.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidUnit) ||
		errors.Is(err, ErrInvalidNumber) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidArgument)
}

// IsMalformed reports whether err indicates a structurally broken
// result stream rather than bad configuration input.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedRecord) ||
		errors.Is(err, ErrUnsupportedFormatVersion) ||
		errors.Is(err, ErrUnknownFileType)
}

// ============================================================================
// Wrapping utilities
// ============================================================================

// InvalidUnitf returns an ErrInvalidUnit with a formatted detail message.
func InvalidUnitf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidUnit, fmt.Sprintf(format, args...))
}

// InvalidNumberf returns an ErrInvalidNumber with a formatted detail message.
func InvalidNumberf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidNumber, fmt.Sprintf(format, args...))
}

// MissingFieldf returns an ErrMissingField naming the absent key.
func MissingFieldf(key string) error {
	return fmt.Errorf("%w: %q", ErrMissingField, key)
}

// InvalidArgumentf returns an ErrInvalidArgument with a formatted
// detail message.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// MalformedRecordf returns an ErrMalformedRecord with a formatted
// detail message.
func MalformedRecordf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRecord, fmt.Sprintf(format, args...))
}

// Re-exported standard helpers so callers need only this package.

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }
