package records

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("records: not found")

// ErrDuplicateID is returned when an insert reuses an existing id.
var ErrDuplicateID = errors.New("records: duplicate id")

// StorageError reports a failed read or write against the backing store.
// Callers treat it as "nothing was persisted".
type StorageError struct {
	Op   string
	Kind string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("records: %s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op, kind string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateID) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Kind: kind, Err: err}
}

// IsStorageError reports whether err carries a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
