package entitydb

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/entitydb/embed"
	"github.com/hupe1980/entitydb/kv"
	"github.com/hupe1980/entitydb/record"
	"github.com/hupe1980/entitydb/storage"
)

var (
	// ErrValidation matches every *ValidationError and *DimensionMismatchError.
	ErrValidation = record.ErrValidation

	// ErrNotFound matches *NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrProvider matches *ProviderError.
	ErrProvider = embed.ErrProvider

	// ErrStorage matches *StorageError.
	ErrStorage = errors.New("storage error")

	// ErrClosed is returned by operations on a closed DB.
	ErrClosed = errors.New("entitydb: closed")
)

// ValidationError reports a malformed record: missing or invalid id,
// wrong vector shape or missing text.
type ValidationError = record.ValidationError

// DimensionMismatchError reports a vector whose length differs from the
// dimensionality established for its group. It is a validation error.
type DimensionMismatchError = record.DimensionMismatchError

// ProviderError reports a failed or malformed embedding.
type ProviderError = embed.ProviderError

// NotFoundError indicates that the target key of an operation is absent.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type NotFoundError struct {
	Key   string
	cause error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %q", e.Key)
}

func (e *NotFoundError) Unwrap() error { return e.cause }

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StorageError indicates a failure of the persistence substrate.
//
// The original underlying error can be accessed via errors.Unwrap.
type StorageError struct {
	Op    string
	Key   string
	cause error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage error: %s: %v", e.Op, e.cause)
	}
	return fmt.Sprintf("storage error: %s %q: %v", e.Op, e.Key, e.cause)
}

func (e *StorageError) Unwrap() error { return e.cause }

// Is reports whether target is ErrStorage.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// translateError maps errors of the lower layers onto the public
// taxonomy. Errors that already belong to it pass through unchanged.
func translateError(op, key string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrProvider),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrStorage),
		errors.Is(err, ErrClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return &NotFoundError{Key: key, cause: err}
	case errors.Is(err, kv.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	var de *storage.DecodeError
	if errors.As(err, &de) && key == "" {
		key = de.Key
	}
	return &StorageError{Op: op, Key: key, cause: err}
}
