package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrRoleConflict = errors.New("session creator has the same role")
	ErrUnknownGame  = errors.New("unknown game type")
)

// ValidationError rejects malformed session input before it reaches the directory.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
