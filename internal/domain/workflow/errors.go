package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrUnknownStatus is returned when a status string is outside the vocabulary
	ErrUnknownStatus = errors.New("unknown status")

	// ErrInvalidStepNumber is returned for step numbers outside 1..TotalSteps
	ErrInvalidStepNumber = errors.New("invalid step number")

	// ErrOutOfOrderTransition is returned when the named step is not the active one
	ErrOutOfOrderTransition = errors.New("out of order transition")

	// ErrAlreadyTerminal is returned for mutations against a completed or failed request
	ErrAlreadyTerminal = errors.New("request already in terminal state")

	// ErrAlreadyInitialized is returned when the steps of a request already exist
	ErrAlreadyInitialized = errors.New("workflow already initialized")

	// ErrNotInitialized is returned when a request has no materialized steps
	ErrNotInitialized = errors.New("workflow not initialized")

	// ErrReviewNotPending is returned when resolving a step that is not awaiting review
	ErrReviewNotPending = errors.New("step is not awaiting review")

	// ErrStaleSignal marks an extraction result that refers to a superseded step
	ErrStaleSignal = errors.New("stale extraction signal")

	// ErrConcurrentModification is returned when another transition for the same request is in flight
	ErrConcurrentModification = errors.New("concurrent modification")
)
