// Package apperror defines the domain errors shared by every layer.
//
// Services return these errors; the HTTP layer maps them to status codes
// (see handler/response.go). Callers test for the kind with errors.Is and
// pull out the message and field details with errors.As.
package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Code    string // Optional: machine-readable reason, e.g. "token_not_valid"
	// Fields holds per-field messages for validation errors that report
	// several problems at once, e.g. {"email": ["Enter a valid email address."]}.
	Fields map[string][]string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Detail returns the per-field messages, folding the single Field/Message
// pair into the map form so callers only deal with one shape.
func (e *AppError) Detail() map[string][]string {
	if len(e.Fields) > 0 {
		return e.Fields
	}
	if e.Field != "" {
		return map[string][]string{e.Field: {e.Message}}
	}
	return nil
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// FieldErrors collects validation messages keyed by field name.
// The zero value is ready to use.
type FieldErrors map[string][]string

// Add records a message for field.
func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

// Err returns nil when nothing was recorded, otherwise a validation
// AppError carrying every message.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return ValidationFields(fe)
}

// ValidationFields builds a validation error from a field map. The message
// lists the offending fields in a stable order.
func ValidationFields(fields map[string][]string) *AppError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	return &AppError{
		Err:     ErrValidation,
		Message: "invalid fields: " + strings.Join(names, ", "),
		Fields:  fields,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Unauthorized returns an AppError for missing or bad credentials.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// WithCode sets Code and returns e for chaining.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}
