package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig       Category = "config"
	CategoryCollaborator Category = "collaborator"
	CategoryValidation   Category = "validation"
	CategorySession      Category = "session"
	CategoryNotFound     Category = "not_found"
	CategoryAuth         Category = "auth"
	CategoryCLI          Category = "cli"
)

// RegistryError is a structured error with a code, an optional form field,
// and a hint on how to recover.
type RegistryError struct {
	// Code is a unique error identifier (e.g., "E301").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Field names the form field the error belongs to, if any.
	Field string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Retryable reports whether repeating the same operation may succeed.
	Retryable bool

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *RegistryError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *RegistryError) Unwrap() error {
	return e.Wrapped
}

// Is matches another RegistryError by code.
func (e *RegistryError) Is(target error) bool {
	t, ok := target.(*RegistryError)
	if !ok || t.Code == "" {
		return false
	}
	return t.Code == e.Code
}

// WithDetail adds a detailed explanation to the error.
func (e *RegistryError) WithDetail(d string) *RegistryError {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted explanation to the error.
func (e *RegistryError) WithDetailf(format string, args ...any) *RegistryError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *RegistryError) WithSuggestion(s string) *RegistryError {
	e.Suggestion = s
	return e
}

// WithField attaches the error to a form field.
func (e *RegistryError) WithField(field string) *RegistryError {
	e.Field = field
	return e
}

// Wrap wraps another error.
func (e *RegistryError) Wrap(err error) *RegistryError {
	e.Wrapped = err
	return e
}

// New creates a RegistryError from a registered error code.
func New(code string) *RegistryError {
	template, ok := registry[code]
	if !ok {
		return &RegistryError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &RegistryError{
		Code:      code,
		Category:  template.Category,
		Message:   template.Message,
		Detail:    template.Detail,
		Retryable: template.Retryable,
	}
}

// Newf creates a new RegistryError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *RegistryError {
	return &RegistryError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a RegistryError.
// Errors that already are (or wrap) a RegistryError are returned as is.
func FromError(err error, code string) *RegistryError {
	if err == nil {
		return nil
	}
	var re *RegistryError
	if stderrors.As(err, &re) {
		return re
	}
	return New(code).Wrap(err)
}

// As reports whether err is or wraps a RegistryError and returns it.
func As(err error) (*RegistryError, bool) {
	var re *RegistryError
	if stderrors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// HasCode reports whether err is or wraps a RegistryError with the given code.
func HasCode(err error, code string) bool {
	re, ok := As(err)
	return ok && re.Code == code
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	re, ok := As(err)
	return ok && re.Category == CategoryValidation
}

// HTTPStatus maps an error to an HTTP status code.
func HTTPStatus(err error) int {
	re, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch re.Category {
	case CategoryValidation:
		switch re.Code {
		case "E303":
			return http.StatusConflict
		case "E309":
			return http.StatusBadRequest
		}
		return http.StatusUnprocessableEntity
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryAuth:
		return http.StatusUnauthorized
	case CategorySession:
		return http.StatusConflict
	case CategoryCollaborator:
		return http.StatusBadGateway
	case CategoryConfig, CategoryCLI:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
