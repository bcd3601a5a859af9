package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCVNotFound  = errors.New("cv document not found")
	ErrRunNotFound = errors.New("evaluation run not found")

	// ErrTransient marks network/timeout failures on external calls.
	// Retried at the call site, never above it.
	ErrTransient = errors.New("transient external failure")

	// ErrNoEvidence signals that a source returned no usable records.
	// Recorded as insufficient_data, not surfaced as a failure.
	ErrNoEvidence = errors.New("no usable evidence")

	// ErrUnresolvable marks a project or profile reference that cannot
	// be located at all (deleted, private, malformed).
	ErrUnresolvable = errors.New("unresolvable reference")

	// ErrRunConflict is raised when a submission collides with an
	// in-flight run for the same CV and the caller abandons the wait
	// for that run's outcome.
	ErrRunConflict = errors.New("run already in flight")

	// ErrFatalPipeline is the only error class that aborts a whole run.
	ErrFatalPipeline = errors.New("pipeline invariant violation")

	ErrInvalidInput = errors.New("invalid input")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
