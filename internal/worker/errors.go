package worker

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned (wrapped) by a Reconciler when the entity behind a
// deferred check no longer exists. It is a terminal outcome.
var ErrNotFound = errors.New("entity not found")

// IsNotFound reports whether err indicates a terminal lookup failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// handlerPanicError captures a panic raised inside a handler or sweep step.
type handlerPanicError struct {
	where string
	value any
}

func (e handlerPanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.where, e.value)
}

// IsHandlerPanic reports whether err was produced by a recovered panic.
func IsHandlerPanic(err error) bool {
	var pe handlerPanicError
	return errors.As(err, &pe)
}
