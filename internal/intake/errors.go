package intake

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a card, board or entity does not exist
	ErrNotFound = errors.New("not found")
	// ErrNotAwaitingReview is returned when accept runs on a card that is already PLACED
	ErrNotAwaitingReview = errors.New("card is not awaiting review")
	// ErrCyclicHierarchy is returned when a parent assignment would create a cycle
	ErrCyclicHierarchy = errors.New("cyclic hierarchy")
	// ErrParentMismatch marks a suggested parent on another board. It is logged, not returned.
	ErrParentMismatch = errors.New("parent belongs to a different board")
	// ErrInvalidAmount is returned when a receipt total is missing, zero, negative or not finite
	ErrInvalidAmount = errors.New("receipt amount needs manual entry")
	// ErrMalformedExtraction marks model output that could not be parsed as JSON
	ErrMalformedExtraction = errors.New("malformed extraction")
	// ErrEmptyContent is returned when there is nothing to ingest
	ErrEmptyContent = errors.New("content is empty")
)

// PersistenceError wraps a failed store operation
type PersistenceError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// RetryableError is implemented by store errors that a caller may retry,
// such as serialization failures.
type RetryableError interface {
	Retryable() bool
}

// persistenceErr passes intake sentinel errors through and wraps everything else.
func persistenceErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrNotFound, ErrNotAwaitingReview, ErrCyclicHierarchy, ErrInvalidAmount} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	retry := false
	var re RetryableError
	if errors.As(err, &re) {
		retry = re.Retryable()
	}
	return &PersistenceError{Op: op, Err: err, Retryable: retry}
}
