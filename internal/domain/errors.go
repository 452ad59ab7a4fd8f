package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrQueueFull is returned when the waiting list is at capacity
	ErrQueueFull = errors.New("queue is full")

	// ErrJobNotFound is returned when an operation references an unknown job id
	ErrJobNotFound = errors.New("job not found")

	// ErrNoHandler is returned when a dequeued job has no registered handler
	ErrNoHandler = errors.New("no handler registered")

	// ErrHandlerFailed is returned when business logic raised an error or panicked
	ErrHandlerFailed = errors.New("handler failed")

	// ErrJobTimeout is returned when a handler exceeded its allotted duration
	ErrJobTimeout = errors.New("job timed out")

	// ErrStoreUnavailable is returned when the persistence layer fails
	ErrStoreUnavailable = errors.New("job store unavailable")

	// ErrInvalidTransition is returned when a job is not in the state an operation requires
	ErrInvalidTransition = errors.New("invalid job state transition")

	// ErrInvalidPayload is returned when a job payload cannot be decoded
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrInvalidJob is returned when enqueue options or the job name are unusable
	ErrInvalidJob = errors.New("invalid job")

	// ErrJobStalled is recorded when an active job's lease expired without an outcome
	ErrJobStalled = errors.New("job stalled: lease expired")

	// ErrHandlerExists is returned when registering a second handler under one name
	ErrHandlerExists = errors.New("handler already registered")
)

// QueueFullError carries the capacity that rejected an enqueue
type QueueFullError struct {
	Limit   int
	Waiting int64
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("queue is full: %d waiting, limit %d", e.Waiting, e.Limit)
}

func (e *QueueFullError) Is(target error) bool {
	return target == ErrQueueFull
}

// NoHandlerError names the job that could not be dispatched
type NoHandlerError struct {
	Name string
}

func (e *NoHandlerError) Error() string {
	return fmt.Sprintf("no handler registered for job %q", e.Name)
}

func (e *NoHandlerError) Is(target error) bool {
	return target == ErrNoHandler
}

// HandlerError wraps an error raised inside business logic
type HandlerError struct {
	Err error
}

func (e *HandlerError) Error() string {
	return "handler failed: " + e.Err.Error()
}

func (e *HandlerError) Is(target error) bool {
	return target == ErrHandlerFailed
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// TimeoutError records the timeout a handler exceeded
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job timed out after %s", e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrJobTimeout
}

// StoreError wraps a persistence failure with the operation that hit it
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("job store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err unless it is nil
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// PermanentError marks a failure that retrying cannot fix. A job failed
// with a PermanentError goes straight to Failed.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent error: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError creates a new permanent error
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err must not be retried
func IsPermanent(err error) bool {
	var permErr *PermanentError
	if errors.As(err, &permErr) {
		return true
	}
	return errors.Is(err, ErrNoHandler)
}
