package rate

import "errors"

var (
	// ErrRateLimited is returned when a key has used up its budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrBackendUnavailable wraps failures of the counter backend.
	ErrBackendUnavailable = errors.New("rate limit backend unavailable")
)
