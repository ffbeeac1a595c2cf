package ingest

import (
	"context"
	"errors"
	"fmt"
)

type fatalError struct{ err error }

func (e fatalError) Error() string { return e.err.Error() }
func (e fatalError) Unwrap() error { return e.err }

// Fatal marks err as aborting the whole fetch instead of only its chunk.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return fatalError{err: err}
}

// IsFatal reports errors that must not be downgraded to a chunk warning:
// errors marked with Fatal and context cancellation.
func IsFatal(err error) bool {
	var fe fatalError
	return errors.As(err, &fe) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// FetchError is an input-preparation failure: the snapshot is unusable.
type FetchError struct {
	Entity string
	Chunk  int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s chunk %d: %v", e.Entity, e.Chunk, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ChunkWarning records a chunk that failed and was treated as empty.
type ChunkWarning struct {
	Entity string `json:"entity"`
	Chunk  int    `json:"chunk"`
	Size   int    `json:"size"`
	Err    string `json:"error"`
}
