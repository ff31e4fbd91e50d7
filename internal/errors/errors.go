// Package errors provides the typed errors raised by the history pipeline and the
// classification helpers used to decide whether a failure is recovered at the
// aggregation boundary or propagated to the top level.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the classification of an error
type ErrorType string

const (
	// Per-symbol error types, recovered by the aggregator
	ErrorTypeFetch     ErrorType = "fetch"      // Transport failure or missing table
	ErrorTypeDateParse ErrorType = "date_parse" // Table uses an unparseable date format
	ErrorTypeSchema    ErrorType = "schema"     // Table lacks a required column

	// Fatal error types, propagated to the caller
	ErrorTypeOutput        ErrorType = "output"        // Destination could not be written
	ErrorTypeConfiguration ErrorType = "configuration" // Configuration errors
	ErrorTypeUsage         ErrorType = "usage"         // Invalid command line arguments

	// Special error types
	ErrorTypeInternal ErrorType = "internal" // Recovered panics and programming errors
	ErrorTypeUnknown  ErrorType = "unknown"  // Unclassified errors
)

// FetchError reports a transport failure, a non-success HTTP status or a response
// without a table structure for a single symbol.
type FetchError struct {
	Symbol     string
	StatusCode int // zero when no response was received
	Cause      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q: %v", e.Symbol, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// DateParseError reports that a symbol's table could not be dated. The whole table
// is rejected, not only the offending row.
type DateParseError struct {
	Symbol string
	Row    int
	Value  string
	Cause  error
}

func (e *DateParseError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("parse dates for %q: %v", e.Symbol, e.Cause)
	}
	return fmt.Sprintf("parse date %q in row %d for %q: %v", e.Value, e.Row, e.Symbol, e.Cause)
}

func (e *DateParseError) Unwrap() error { return e.Cause }

// SchemaError reports that a symbol's table is missing one of the canonical columns.
type SchemaError struct {
	Symbol string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("table for %q has no %q column", e.Symbol, e.Column)
}

// OutputWriteError reports a failure to create, open, write or close the destination.
type OutputWriteError struct {
	Destination string
	Op          string
	Cause       error
}

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Destination, e.Cause)
}

func (e *OutputWriteError) Unwrap() error { return e.Cause }

// InternalError wraps a value recovered from a panic.
type InternalError struct {
	Component string
	Value     interface{}
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s: %v", e.Component, e.Value)
}

// UsageError reports invalid command line input.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

// NewUsageError formats a UsageError.
func NewUsageError(format string, args ...interface{}) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// ConfigError reports an invalid configuration source or value.
type ConfigError struct {
	Source string
	Cause  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Source, e.Cause)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// GetErrorType classifies err by the first typed error found in its chain.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var (
		fetchErr    *FetchError
		dateErr     *DateParseError
		schemaErr   *SchemaError
		outputErr   *OutputWriteError
		configErr   *ConfigError
		usageErr    *UsageError
		internalErr *InternalError
	)

	switch {
	case errors.As(err, &outputErr):
		return ErrorTypeOutput
	case errors.As(err, &fetchErr):
		return ErrorTypeFetch
	case errors.As(err, &dateErr):
		return ErrorTypeDateParse
	case errors.As(err, &schemaErr):
		return ErrorTypeSchema
	case errors.As(err, &configErr):
		return ErrorTypeConfiguration
	case errors.As(err, &usageErr):
		return ErrorTypeUsage
	case errors.As(err, &internalErr):
		return ErrorTypeInternal
	default:
		return ErrorTypeUnknown
	}
}

// IsSymbolScoped reports whether err is an expected per-symbol failure: the page
// could not be fetched or its table could not be read. The aggregator skips every
// failing symbol; anything outside this class points at a defect and is logged louder.
func IsSymbolScoped(err error) bool {
	switch GetErrorType(err) {
	case ErrorTypeFetch, ErrorTypeDateParse, ErrorTypeSchema:
		return true
	default:
		return false
	}
}

// IsFatal reports whether err, once it reaches the command level, must end the
// program with a failure exit code. Per-symbol failures never do.
func IsFatal(err error) bool {
	return err != nil && !IsSymbolScoped(err)
}

// Describe renders err as a one-line diagnostic of the form "Type: message".
func Describe(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	return fmt.Sprintf("%s: %s", typeName(GetErrorType(err)), msg)
}

func typeName(t ErrorType) string {
	switch t {
	case ErrorTypeFetch:
		return "FetchError"
	case ErrorTypeDateParse:
		return "DateParseError"
	case ErrorTypeSchema:
		return "SchemaError"
	case ErrorTypeOutput:
		return "OutputWriteError"
	case ErrorTypeConfiguration:
		return "ConfigError"
	case ErrorTypeUsage:
		return "UsageError"
	case ErrorTypeInternal:
		return "InternalError"
	default:
		return "Error"
	}
}

// WrapError wraps an error with additional context
func WrapError(err error, component, operation, message string) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s in %s.%s: %w", message, component, operation, err)
}
