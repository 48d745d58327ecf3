package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidField  = errors.New("invalid field")
	ErrDuplicateRoll = errors.New("roll number already exists")
	ErrNotFound      = errors.New("student not found")
	ErrEmptyStore    = errors.New("no student records")
	// ErrIO means loading or saving could not complete. After a mutation the
	// in-memory change stands; only the persisted copy is stale.
	ErrIO = errors.New("storage failure")
)

// FieldError identifies which field failed validation and why.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidField }

func fieldError(field, format string, args ...any) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func ioError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}
