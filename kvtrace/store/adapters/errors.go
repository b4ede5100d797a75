package adapters

import "errors"

// ErrWrongType mirrors Redis WRONGTYPE: a list operation hit a string key or
// the other way around.
var ErrWrongType = errors.New("operation against a key holding the wrong kind of value")

// ErrRateLimitExceeded is returned when the rate limit is exceeded.
var ErrRateLimitExceeded = &RateLimitError{Message: "rate limit exceeded"}

type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	return e.Message
}
