// Package errors provides the typed error kinds surfaced by ingestion and calculation.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Type identifies the category of error
type Type string

const (
	// TypeSourceNotFound indicates no candidate rate file exists
	TypeSourceNotFound Type = "SOURCE_NOT_FOUND"

	// TypeUnreadableEncoding indicates no candidate encoding decodes the file
	TypeUnreadableEncoding Type = "UNREADABLE_ENCODING"

	// TypeHeaderNotFound indicates no line carries the cluster marker
	TypeHeaderNotFound Type = "HEADER_NOT_FOUND"

	// TypeSchemaTooNarrow indicates every delimiter produced too few columns
	TypeSchemaTooNarrow Type = "SCHEMA_TOO_NARROW"

	// TypeProfileNotFound indicates no row matches a cluster and supply mode
	TypeProfileNotFound Type = "PROFILE_NOT_FOUND"

	// TypeZeroAllocation indicates the purchase volume sums to zero
	TypeZeroAllocation Type = "ZERO_ALLOCATION"

	// TypeRateMissing indicates a strict-policy sentinel rate was needed
	TypeRateMissing Type = "RATE_MISSING"

	// TypeParsing indicates a source that cannot be tokenized
	TypeParsing Type = "PARSING_ERROR"

	// TypeInput indicates an input validation error
	TypeInput Type = "INPUT_ERROR"

	// TypeConfig indicates a configuration error
	TypeConfig Type = "CONFIG_ERROR"

	// TypeInternal indicates an internal error
	TypeInternal Type = "INTERNAL_ERROR"
)

// Error represents a domain error with context
type Error struct {
	Type    Type                   `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same type, so errors.Is works with sentinels
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(errType Type, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// As extracts the first *Error in the chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsType checks if an error, or anything it wraps, is of a specific type
func IsType(err error, t Type) bool {
	e, ok := As(err)
	return ok && e.Type == t
}

// TypeOf returns the type of err, or TypeInternal for foreign errors
func TypeOf(err error) Type {
	if e, ok := As(err); ok {
		return e.Type
	}
	return TypeInternal
}

// Recoverable reports whether the caller can render err as an empty or
// rejected result instead of aborting.
func Recoverable(err error) bool {
	switch TypeOf(err) {
	case TypeProfileNotFound, TypeZeroAllocation, TypeInput:
		return true
	default:
		return false
	}
}

// SourceNotFound creates a source-not-found error listing what was tried
func SourceNotFound(tried []string) *Error {
	return Newf(TypeSourceNotFound, "no rate table found (tried %d candidates)", len(tried)).
		WithContext("tried", tried)
}

// UnreadableEncoding creates an encoding error
func UnreadableEncoding(tried []string, cause error) *Error {
	return Wrapf(TypeUnreadableEncoding, cause, "no candidate encoding decodes the file (tried %v)", tried)
}

// HeaderNotFound creates a header error carrying a preview of the content
func HeaderNotFound(marker, preview string) *Error {
	return Newf(TypeHeaderNotFound, "no line contains the %q marker; file starts with:\n%s", marker, preview).
		WithContext("preview", preview)
}

// SchemaTooNarrow creates a schema width error
func SchemaTooNarrow(got, want int, cause error) *Error {
	return Wrapf(TypeSchemaTooNarrow, cause, "table has %d columns, need at least %d", got, want)
}

// ProfileNotFound creates a profile lookup error
func ProfileNotFound(cluster, supplyMode string) *Error {
	return Newf(TypeProfileNotFound, "no rates for cluster %q with supply mode %q", cluster, supplyMode).
		WithContext("cluster", cluster).
		WithContext("supply_mode", supplyMode)
}

// ZeroAllocation creates the empty-volume rejection
func ZeroAllocation() *Error {
	return New(TypeZeroAllocation, "total purchase volume is zero, enter at least one supplier amount")
}

// RateMissing creates a strict-policy missing rate error
func RateMissing(supplier string, year int) *Error {
	return Newf(TypeRateMissing, "rate for %s %d is missing in the rate table", supplier, year).
		WithContext("supplier", supplier).
		WithContext("year", year)
}

// Parsing creates a parsing error
func Parsing(message string, cause error) *Error {
	return Wrap(TypeParsing, message, cause)
}

// Input creates an input error
func Input(message string) *Error {
	return New(TypeInput, message)
}

// Config creates a configuration error
func Config(message string) *Error {
	return New(TypeConfig, message)
}

// Internal creates an internal error
func Internal(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}
