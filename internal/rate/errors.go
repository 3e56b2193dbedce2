package rate

import "errors"

var (
	// ErrRateLimited means the caller exhausted the current window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable means the counter could not be read or written.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidWindow means an enabled limiter was configured without a window.
	ErrInvalidWindow = errors.New("rate window must be > 0")
)
