package store

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable means the database could not be opened or prepared.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrNotFound means the addressed background does not exist.
	ErrNotFound = errors.New("background not found")
)

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}
