package lock

import "errors"

// Domain-specific errors for lock gateway operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTimeout is returned when the bridge does not answer a request
	// within the configured request timeout.
	ErrTimeout = errors.New("lock: request timed out")

	// ErrUnavailable is returned when the bridge or the physical lock
	// cannot be reached (broker down, bridge offline, device unreachable).
	ErrUnavailable = errors.New("lock: device unavailable")

	// ErrMalformedResponse is returned when the bridge answers with a
	// payload that cannot be interpreted.
	ErrMalformedResponse = errors.New("lock: malformed bridge response")
)
