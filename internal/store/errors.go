package store

import "fmt"

// PersistenceError indicates a store operation failed. The orchestrator
// retries these a small fixed number of times before failing the unit.
type PersistenceError struct {
	Op  string // "get", "upsert", "list", "reset"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
