// Package apperr defines the structured error type shared by the engine, the
// analytics service and the transport layers.
package apperr

import "errors"

// Code is a machine-readable error classification.
type Code string

const (
	CodeInvalidFilter    Code = "invalid_filter"
	CodeUnauthorized     Code = "unauthorized"
	CodeDataUnavailable  Code = "data_unavailable"
	CodeNotFound         Code = "not_found"
	CodeConflict         Code = "conflict"
	CodeValidation       Code = "validation_failed"
	CodeInvalidCatalogue Code = "invalid_catalogue"
	CodeInternal         Code = "internal_error"
)

// Error carries a code, an internal message, optional metadata and a cause.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidFilter    = New(CodeInvalidFilter, "invalid filter")
	ErrUnauthorized     = New(CodeUnauthorized, "unauthorized")
	ErrDataUnavailable  = New(CodeDataUnavailable, "data unavailable")
	ErrNotFound         = New(CodeNotFound, "not found")
	ErrConflict         = New(CodeConflict, "conflict")
	ErrValidation       = New(CodeValidation, "validation failed")
	ErrInvalidCatalogue = New(CodeInvalidCatalogue, "invalid catalogue")
)

// CodeOf returns the code of the first *Error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MetadataOf returns the metadata of the first *Error in the chain.
func MetadataOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Metadata
	}
	return nil
}
