package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRoute is returned when the supervisor picks a value outside
	// the registered workers and FINISH.
	ErrInvalidRoute = errors.New("invalid routing target")

	// ErrMalformedDecision is returned by a Decider whose output could not
	// be read as a choice at all. It is an invalid route and is retried
	// like one.
	ErrMalformedDecision = fmt.Errorf("malformed decision: %w", ErrInvalidRoute)

	// ErrCycleLimit is returned when a run reaches the configured maximum
	// number of supervisor decisions without finishing.
	ErrCycleLimit = errors.New("maximum cycle count reached")

	// ErrStepLimit is returned when a worker loop exceeds its step budget.
	ErrStepLimit = errors.New("worker step limit reached")

	ErrUnknownWorker = errors.New("unknown worker")
	ErrToolNotFound  = errors.New("tool not found")
)
