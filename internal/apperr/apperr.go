// Package apperr defines the error kinds shared by the domain services.
// Handlers translate them into HTTP status codes; anything that does not wrap
// one of these is treated as an opaque internal failure.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrEmptyInput          = errors.New("nothing to do")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnauthorized        = errors.New("unauthorized")
)

// Error carries a caller-facing message alongside its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error { return newf(ErrValidation, format, args...) }
func NotFound(format string, args ...any) error   { return newf(ErrNotFound, format, args...) }
func Forbidden(format string, args ...any) error  { return newf(ErrForbidden, format, args...) }
func Conflict(format string, args ...any) error   { return newf(ErrConflict, format, args...) }
func EmptyInput(format string, args ...any) error { return newf(ErrEmptyInput, format, args...) }

// Message returns the caller-facing text for err, or "" when err is not a
// domain error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	for _, kind := range []error{ErrValidation, ErrEmptyInput, ErrNotFound, ErrForbidden, ErrConflict, ErrInsufficientBalance, ErrUnauthorized} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return ""
}
