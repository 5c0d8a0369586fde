package permission

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a permission, role, user or grant does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned for duplicate codes or names and for deletes blocked by references.
	ErrConflict = errors.New("conflict")
	// ErrValidation is returned for malformed input, before the store is touched.
	ErrValidation = errors.New("validation failed")
)

// ConflictError reports what blocks an operation and, for blocked deletes, how many references remain.
type ConflictError struct {
	Msg        string
	References int64
}

func (e *ConflictError) Error() string {
	if e.References > 0 {
		return fmt.Sprintf("%s (%d references)", e.Msg, e.References)
	}

	return e.Msg
}

// Is makes errors.Is(err, ErrConflict) hold.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict //nolint:errorlint
}

// ValidationError describes rejected input.
type ValidationError struct {
	Msg    string
	Fields []FieldError `json:",omitempty"`
}

// NewValidationError returns a ValidationError with msg.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Msg: msg}
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation //nolint:errorlint
}

func notFound(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
}
