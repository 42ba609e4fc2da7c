package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the index dimensions.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrPersistence marks every save/load failure.
	ErrPersistence = errors.New("index persistence failure")
)

// PersistenceError describes a failed save or load of the index artifacts.
type PersistenceError struct {
	Op   string // "save" or "load"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("index %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

func persistErr(op, path string, err error) error {
	return &PersistenceError{Op: op, Path: path, Err: err}
}
