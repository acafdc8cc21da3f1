package record

import (
	"errors"
	"fmt"
)

// ErrValidation is the sentinel matched by every validation failure.
var ErrValidation = errors.New("validation error")

// ValidationError reports a malformed record: missing or invalid id,
// wrong vector shape, missing text or dimension mismatch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}
	return fmt.Sprintf("validation error: field %q: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DimensionMismatchError indicates a vector whose length disagrees with
// the dimensionality established for its group.
type DimensionMismatchError struct {
	Group    Group
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("validation error: %s dimension mismatch: expected %d, got %d", e.Group, e.Expected, e.Actual)
}

// Is reports whether target is ErrValidation.
func (e *DimensionMismatchError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
