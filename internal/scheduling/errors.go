package scheduling

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned when a proposed booking overlaps an existing
	// appointment for the same doctor. Retrying with the same input will
	// conflict again, so callers must not retry automatically.
	ErrConflict = errors.New("scheduling: time slot conflict")

	// ErrNotFound is returned when a referenced appointment does not exist.
	ErrNotFound = errors.New("scheduling: appointment not found")
)

// ValidationError reports malformed input rejected before any store access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("scheduling: invalid %s: %s", e.Field, e.Reason)
}

// StoreError wraps transient infrastructure failures from the appointment
// store. Safe to retry the whole atomic operation with backoff.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("scheduling: store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// TransitionError reports a disallowed status transition.
type TransitionError struct {
	From AppointmentStatus
	To   AppointmentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("scheduling: cannot transition %s to %s", e.From, e.To)
}

// IsRetryable reports whether the error is a transient store failure rather
// than a domain outcome like a conflict or validation failure.
func IsRetryable(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}
