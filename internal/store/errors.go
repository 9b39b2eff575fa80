package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups of a single queued request that does
// not exist.
var ErrNotFound = errors.New("not found")

// StorageError reports an I/O or SQL failure of the durable store.
//
// Storage faults are fatal to the operation in progress and are never
// retried internally; callers decide whether the failure is tolerable.
type StorageError struct {
	// Op names the store operation, e.g. "enqueue" or "put cache".
	Op string

	// Err is the underlying driver error.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError returns true if err is or wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
