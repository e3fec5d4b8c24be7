package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Kind classifies failures of the member search engine
type Kind string

const (
	// Request validation errors, raised before anything is dispatched
	KindInvalidRequest Kind = "invalid_request"
	KindInvalidPattern Kind = "invalid_pattern"
	KindInvalidPath    Kind = "invalid_path"

	// Per-pattern errors, collected instead of aborting sibling patterns
	KindPermissionDenied Kind = "permission_denied"
	KindResourceNotFound Kind = "resource_not_found"
	KindToolFailure      Kind = "tool_failure"
	KindCancelled        Kind = "cancelled"
	KindConnectionLost   Kind = "connection_lost"

	// Configuration errors
	KindConfig Kind = "config"
)

// Sentinels for errors.Is checks against a SearchError of the same kind.
var (
	ErrInvalidRequest   = &SearchError{Kind: KindInvalidRequest}
	ErrInvalidPattern   = &SearchError{Kind: KindInvalidPattern}
	ErrInvalidPath      = &SearchError{Kind: KindInvalidPath}
	ErrPermissionDenied = &SearchError{Kind: KindPermissionDenied}
	ErrResourceNotFound = &SearchError{Kind: KindResourceNotFound}
	ErrToolFailure      = &SearchError{Kind: KindToolFailure}
	ErrCancelled        = &SearchError{Kind: KindCancelled}
	ErrConnectionLost   = &SearchError{Kind: KindConnectionLost}
)

// SearchError represents a failure tied to a search request or one of its patterns
type SearchError struct {
	Kind       Kind
	Pattern    string
	Message    string
	Underlying error
	Timestamp  time.Time
}

// New creates a search error of the given kind
func New(kind Kind, pattern, message string) *SearchError {
	return &SearchError{
		Kind:      kind,
		Pattern:   pattern,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Newf creates a search error with a formatted message
func Newf(kind Kind, pattern, format string, args ...interface{}) *SearchError {
	return New(kind, pattern, fmt.Sprintf(format, args...))
}

// Wrap creates a search error that keeps err as its cause
func Wrap(kind Kind, pattern string, err error) *SearchError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &SearchError{
		Kind:       kind,
		Pattern:    pattern,
		Message:    msg,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *SearchError) Error() string {
	if e.Pattern != "" {
		return fmt.Sprintf("%s for pattern %q: %s", e.Kind, e.Pattern, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *SearchError) Unwrap() error {
	return e.Underlying
}

// Is reports whether target is a SearchError of the same kind
func (e *SearchError) Is(target error) bool {
	t, ok := target.(*SearchError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the kind of err, or "" if err is not a SearchError
func KindOf(err error) Kind {
	var se *SearchError
	if stderrors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsValidation reports whether err aborts a whole request before dispatch
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindInvalidRequest, KindInvalidPattern, KindInvalidPath:
		return true
	}
	return false
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// ErrorOrNil returns nil when no errors were collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
