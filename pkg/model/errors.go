package model

import (
	"errors"
	"fmt"
)

var (
	ErrConnection      = errors.New("graphsink: store connection failed")
	ErrStoreLocked     = errors.New("graphsink: store is locked by another connection")
	ErrElementNotFound = errors.New("graphsink: element not found")
	ErrTransaction     = errors.New("graphsink: flush transaction failed")
)

// ConnectionError reports a store that could not be opened. Locked is set
// when another process holds the store's directory lock.
type ConnectionError struct {
	Path   string
	Locked bool
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Locked {
		return fmt.Sprintf("store %q is locked by another connection: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("cannot connect to store %q: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection || (e.Locked && target == ErrStoreLocked)
}

// ElementNotFoundError is returned when an edge references a node that does
// not exist and the consistency mode does not allow skipping or creating it.
type ElementNotFoundError struct {
	EdgeID   string
	From     string
	To       string
	Directed bool
	Missing  string
}

func (e *ElementNotFoundError) Error() string {
	arrow := "-"
	if e.Directed {
		arrow = ">"
	}
	return fmt.Sprintf("cannot create edge %s[%s-%s%s]: node %q does not exist",
		e.EdgeID, e.From, arrow, e.To, e.Missing)
}

func (e *ElementNotFoundError) Is(target error) bool { return target == ErrElementNotFound }

// TransactionError reports a flush whose transaction was rolled back. The
// Events drained for it are gone.
type TransactionError struct {
	Events int
	Err    error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("flush of %d events abandoned: %v", e.Events, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

func (e *TransactionError) Is(target error) bool { return target == ErrTransaction }
