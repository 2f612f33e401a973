package api

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned for 401 responses; the session must be refreshed
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTargetNotFound is returned for 404 responses on a target
	ErrTargetNotFound = errors.New("target not found")
)

// NetworkError wraps transport failures, timeouts and 5xx responses.
// These are retryable by the user; the client never retries on its own.
type NetworkError struct {
	Err    error
	Op     string
	Status int
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: server returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Retryable reports that the same request may succeed later
func (e *NetworkError) Retryable() bool {
	return true
}

// IsRetryable reports whether err is a transient failure worth retrying
func IsRetryable(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
