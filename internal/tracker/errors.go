package tracker

import "errors"

// notFoundError signals that the issue does not exist (HTTP 404).
type notFoundError struct{ key string }

func (e notFoundError) Error() string { return "issue not found: " + e.key }

// ErrNotFound returns an error for a missing issue key.
func ErrNotFound(key string) error { return notFoundError{key: key} }

// IsNotFound reports whether err indicates a missing issue.
func IsNotFound(err error) bool {
	var nf notFoundError
	return errors.As(err, &nf)
}

// transitionUnavailableError signals that the named transition is not offered
// from the issue's current status.
type transitionUnavailableError struct{ key, name string }

func (e transitionUnavailableError) Error() string {
	return "transition '" + e.name + "' not available for " + e.key
}

// IsTransitionUnavailable reports whether err indicates a missing transition.
func IsTransitionUnavailable(err error) bool {
	var tu transitionUnavailableError
	return errors.As(err, &tu)
}
