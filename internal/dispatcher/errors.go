package dispatcher

import (
	"errors"
	"fmt"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("job queue is full")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("dispatcher stopped")

// ValidationError represents a rejected job request
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// SourceError wraps a failure to fetch the job's source document.
type SourceError struct {
	Ref string
	Err error
}

func (e *SourceError) Error() string { return fmt.Sprintf("fetch %s: %v", e.Ref, e.Err) }
func (e *SourceError) Unwrap() error { return e.Err }

// PublishError wraps a failure to upload segments back to the source's origin.
type PublishError struct {
	Ref string
	Err error
}

func (e *PublishError) Error() string { return fmt.Sprintf("publish %s: %v", e.Ref, e.Err) }
func (e *PublishError) Unwrap() error { return e.Err }
