package adapters

import (
	"context"
	"sync"
	"time"

	ports "github.com/ZanzyTHEbar/kvtrace/kvtrace/store/ports"
)

// TokenBucket implements a token bucket rate limiter keyed by an arbitrary
// string (the page cache keys it by URL host).
type TokenBucket struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	capacity   int           // max tokens per bucket
	refillRate time.Duration // time between token refills
	now        func() time.Time
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewTokenBucket creates a new token bucket rate limiter.
func NewTokenBucket(capacity int, refillRate time.Duration) *TokenBucket {
	return &TokenBucket{
		buckets:    make(map[string]*bucket),
		capacity:   capacity,
		refillRate: refillRate,
		now:        time.Now,
	}
}

// Acquire takes a token for key or fails with ErrRateLimitExceeded. The
// returned release is a no-op: tokens come back only through refill.
func (tb *TokenBucket) Acquire(ctx context.Context, key string) (release func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, exists := tb.buckets[key]
	if !exists {
		b = &bucket{
			tokens:     tb.capacity,
			lastRefill: now,
		}
		tb.buckets[key] = b
	}

	if tb.refillRate > 0 {
		tokensToAdd := int(now.Sub(b.lastRefill) / tb.refillRate)
		if tokensToAdd > 0 {
			b.tokens = min(b.tokens+tokensToAdd, tb.capacity)
			b.lastRefill = b.lastRefill.Add(time.Duration(tokensToAdd) * tb.refillRate)
		}
	}

	if b.tokens <= 0 {
		return nil, ErrRateLimitExceeded
	}
	b.tokens--

	return func() {}, nil
}

// Ensure TokenBucket implements the RateLimiter interface.
var _ ports.RateLimiter = (*TokenBucket)(nil)
