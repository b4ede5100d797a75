package storeports

import "context"

// RateLimiter throttles outbound work per key (a host, an identity).
type RateLimiter interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
