package models

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error wraps exactly one of them so the HTTP layer
// can pick a status with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrIntegrity  = errors.New("integrity violation")
)

// ErrAppendOnly is returned by ledger rows when something tries to update or delete them.
var ErrAppendOnly = fmt.Errorf("%w: ledger rows are append-only", ErrIntegrity)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
