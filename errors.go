package dataflow

import (
	"context"
	"errors"
	"fmt"
)

// Standard errors returned by this package's blocking and non-blocking
// operations.
var (
	// ErrAlreadyBound is wrapped by [AlreadyBoundError], returned when a
	// second bind is attempted on a cell that has already transitioned out
	// of its unbound state.
	ErrAlreadyBound = errors.New("dataflow: already bound")

	// ErrTimeout is returned by TryRead variants when the deadline elapses
	// before the cell is bound. It is never stored in the cell itself.
	ErrTimeout = errors.New("dataflow: read timed out")

	// ErrCancelled surfaces a context cancellation at a blocking call site.
	// It does not alter the state of the cell being read.
	ErrCancelled = errors.New("dataflow: read cancelled")
)

// AlreadyBoundError reports an attempted rebind of a single-assignment
// variable, carrying the value/error the cell was already bound to.
type AlreadyBoundError struct {
	// Prior is the value or error the cell settled with initially.
	Prior any
}

// Error implements the error interface.
func (e *AlreadyBoundError) Error() string {
	return fmt.Sprintf("dataflow: already bound to %v", e.Prior)
}

// Unwrap allows errors.Is(err, ErrAlreadyBound) to succeed.
func (e *AlreadyBoundError) Unwrap() error {
	return ErrAlreadyBound
}

// InitializerFailureError wraps the panic or error value produced by a
// [LazySAV] initializer. It becomes the cause a lazy cell is bound to as a
// Failed state.
type InitializerFailureError struct {
	// Cause is the error the initializer returned, or the recovered panic
	// value wrapped as an error.
	Cause error
}

// Error implements the error interface.
func (e *InitializerFailureError) Error() string {
	return fmt.Sprintf("dataflow: lazy initializer failed: %v", e.Cause)
}

// Unwrap returns the underlying cause, for use with [errors.Is]/[errors.As].
func (e *InitializerFailureError) Unwrap() error {
	return e.Cause
}

// AggregateError collects more than one failure from a Parallel* combinator
// call that was asked to continue past the first error rather than
// short-circuit. It is not used by [WhenAllBound], which reports only the
// first failure in input order; WhenAllBound settles only after every input
// has settled, so it does not fail early while other inputs are unbound.
type AggregateError struct {
	// Errors is the ordered list of failures observed.
	Errors []error
}

// Error implements the error interface.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("dataflow: %d errors occurred, first: %v", len(e.Errors), e.Errors[0])
}

// Is reports whether target is an *AggregateError, or matches any contained
// error.
func (e *AggregateError) Is(target error) bool {
	var agg *AggregateError
	if errors.As(target, &agg) {
		return true
	}
	for _, err := range e.Errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Unwrap supports multi-error unwrapping for [errors.Is]/[errors.As]
// (Go 1.20+).
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// wrapErrorf wraps cause with a formatted message, preserving the chain for
// errors.Is/errors.As.
func wrapErrorf(cause error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, cause)...)
}

// ctxErr maps a context error observed at a blocking call site to this
// package's Timeout/Cancelled error kinds (spec.md §7), while keeping
// ctx.Err() itself in the chain for errors.Is(err, context.Canceled) and
// similar callers.
func ctxErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}
