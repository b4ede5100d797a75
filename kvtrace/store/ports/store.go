package storeports

import (
	"context"
	"errors"
	"time"
)

// ErrStoreClosed is returned by adapters once Close has been called.
var ErrStoreClosed = errors.New("store closed")

// Store is the key-value service every instrumented operation talks to.
// Increment and append are expected to be atomic on the backend side; nothing
// above this interface takes locks.
type Store interface {
	// Incr atomically adds one to the integer at key, starting from zero.
	Incr(ctx context.Context, key string) (int64, error)
	// RPush appends value to the tail of the list at key.
	RPush(ctx context.Context, key string, value string) error
	// LRange reads list elements between start and stop inclusive; negative
	// indexes count from the tail, so (0, -1) is the whole list.
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// Get returns ok=false when the key does not exist or has expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// SetEX stores value and lets the backend expire it after ttl.
	SetEX(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// FlushAll drops every key held by the backend.
	FlushAll(ctx context.Context) error
	Close() error
}
