package studio

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned (wrapped) when a client, appointment, or reminder
// does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError describes malformed caller input. Nothing is persisted
// when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ErrConflict is returned (wrapped) when a write would violate uniqueness,
// such as registering a second client with the same email.
var ErrConflict = errors.New("conflict")

// IsConflict reports whether err wraps ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
