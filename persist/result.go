// Package persist models calls to a durable store that may be unavailable.
//
// Stores return a Result instead of (T, error) so callers must decide what a
// degraded store means for them: marks fail open, the event log drops the row,
// the proposal queue keeps working from memory.
package persist

import (
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
)

// ErrUnavailable marks a store that is not provisioned at all.
var ErrUnavailable = errors.New("store unavailable")

// Result is either a value or a degraded outcome carrying its cause.
type Result[T any] struct {
	value T
	cause error
}

// OK returns a healthy result.
func OK[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Degraded returns a result for a store call that could not be served.
func Degraded[T any](cause error) Result[T] {
	if cause == nil {
		cause = ErrUnavailable
	}
	return Result[T]{cause: cause}
}

// Unavailable is Degraded(ErrUnavailable), used when no store is configured.
func Unavailable[T any]() Result[T] {
	return Degraded[T](ErrUnavailable)
}

// From converts a conventional (value, error) pair.
func From[T any](v T, err error) Result[T] {
	if err != nil {
		return Degraded[T](err)
	}
	return OK(v)
}

// Get returns the value and whether the store served the call.
func (r Result[T]) Get() (T, bool) {
	return r.value, r.cause == nil
}

// IsDegraded reports whether the store call failed.
func (r Result[T]) IsDegraded() bool {
	return r.cause != nil
}

// Cause is the store failure, or nil for a healthy result.
func (r Result[T]) Cause() error {
	return r.cause
}

// Err returns the cause wrapped with op, or nil.
// Use it where a degraded store should surface as an ordinary error.
func (r Result[T]) Err(op string) error {
	if r.cause == nil {
		return nil
	}
	return errors.Wrap(r.cause, op)
}
