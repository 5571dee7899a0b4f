// Package apperror defines the domain errors shared by every layer.
//
// Services and repositories return these; only the handler package decides
// what they look like on the wire. Callers match with errors.Is against the
// sentinels below. The *AppError wrapper carries the human-readable message
// and, for validation failures, the offending field(s).
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnsupportedType    = errors.New("unsupported file type")

	// Duplicate errors also match ErrConflict.
	ErrDuplicateUsername = fmt.Errorf("duplicate username: %w", ErrConflict)
	ErrDuplicateEmail    = fmt.Errorf("duplicate email: %w", ErrConflict)
)

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type AppError struct {
	Err     error        // actual error
	Message string       // Human-readable error message
	Field   string       // Optional: field causing the error
	Fields  []FieldError // Optional: every failing field, for form validation
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
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
		Fields:  []FieldError{{Field: field, Message: message}},
	}
}

// InvalidFields bundles the result of form validation into one error.
// The message joins the individual messages so log lines stay readable.
func InvalidFields(fields []FieldError) *AppError {
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, f.Message)
	}
	e := &AppError{
		Err:     ErrValidation,
		Message: strings.Join(msgs, "; "),
		Fields:  fields,
	}
	if len(fields) > 0 {
		e.Field = fields[0].Field
	}
	return e
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

func DuplicateUsername() *AppError {
	return &AppError{
		Err:     ErrDuplicateUsername,
		Message: "Username already exists. Please choose a different one.",
		Field:   "username",
	}
}

func DuplicateEmail() *AppError {
	return &AppError{
		Err:     ErrDuplicateEmail,
		Message: "Email already registered. Please use a different one.",
		Field:   "email",
	}
}

// InvalidCredentials is deliberately identical for an unknown username and
// a wrong password.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "Invalid username or password",
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func UnsupportedType(filename string) *AppError {
	return &AppError{
		Err:     ErrUnsupportedType,
		Message: fmt.Sprintf("%s: images only (jpg, jpeg, png, gif)", filename),
		Field:   "photo",
	}
}
