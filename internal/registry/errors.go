package registry

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced profile id does not exist.
var ErrNotFound = errors.New("connection not found")

// StorageError indicates that persisting the registry to durable storage
// failed. The in-memory registry is left in its last-known-good state.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("registry storage failed during %s of %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}
