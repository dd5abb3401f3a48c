// Package errors defines the failure taxonomy shared by the index builder,
// the persistence layer and the query surfaces.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInputNotFound         = errors.New("input not found")
	ErrMalformedIdentifier   = errors.New("malformed document identifier")
	ErrEmptyCollection       = errors.New("empty document collection")
	ErrDuplicateDocument     = errors.New("duplicate document id")
	ErrTermNotFound          = errors.New("term not found")
	ErrDocumentNotFound      = errors.New("document not found")
	ErrPositionNotFound      = errors.New("position not found")
	ErrSerializationMismatch = errors.New("serialization mismatch")
	ErrIndexSealed           = errors.New("index is sealed")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInternal              = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Recoverable reports whether err is a query-time miss or user error that a
// session reports and survives.
func Recoverable(err error) bool {
	return errors.Is(err, ErrTermNotFound) ||
		errors.Is(err, ErrDocumentNotFound) ||
		errors.Is(err, ErrPositionNotFound) ||
		errors.Is(err, ErrInvalidInput)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrTermNotFound),
		errors.Is(err, ErrDocumentNotFound),
		errors.Is(err, ErrPositionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrSerializationMismatch), errors.Is(err, ErrInputNotFound):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
