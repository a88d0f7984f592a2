package storage

import "fmt"

// LoadError reports a batch the destination rejected, e.g. a key collision
// under PolicyStrict.
type LoadError struct {
	Table string
	Batch int64 // 1-based batch number
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: batch %d: %v", e.Table, e.Batch, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
