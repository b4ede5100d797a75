// Package cache stores scalar values under freshly generated keys.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ZanzyTHEbar/kvtrace/kvtrace/instrument"
	ports "github.com/ZanzyTHEbar/kvtrace/kvtrace/store/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StoreIdentity names Cache.Store in the call counter and history logs.
const StoreIdentity = "Cache.Store"

var (
	// ErrUnsupportedValue is returned by Store for values that are not text,
	// bytes, integers or floats.
	ErrUnsupportedValue = errors.New("unsupported value type")
	// ErrNilConverter is returned by GetAs when no converter is given.
	ErrNilConverter = errors.New("nil converter")
)

// Converter turns the raw stored bytes into a typed value.
type Converter[T any] func(raw []byte) (T, error)

// Cache writes values under UUID keys. Every Store call is counted and
// history-logged under StoreIdentity.
type Cache struct {
	st     ports.Store
	logger zerolog.Logger
	store  instrument.Func[any, string]
}

type options struct {
	logger     zerolog.Logger
	instrument []instrument.Option
	tracer     ports.Tracer
}

// Option configures a Cache.
type Option func(*options)

// WithLogger sets the cache logger; it is also handed to the instrumentation.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
		o.instrument = append(o.instrument, instrument.WithLogger(logger))
	}
}

// WithInstrumentOptions passes extra options to the Store wrappers.
func WithInstrumentOptions(opts ...instrument.Option) Option {
	return func(o *options) { o.instrument = append(o.instrument, opts...) }
}

// WithTracer opens a span around every Store call.
func WithTracer(tracer ports.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

// New flushes st and returns a Cache on top of it. The flush removes every
// key in the store, including counters and logs of other identities.
func New(ctx context.Context, st ports.Store, opts ...Option) (*Cache, error) {
	if err := st.FlushAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to flush store: %w", err)
	}
	return Attach(st, opts...), nil
}

// Attach returns a Cache over st without flushing it, for processes that
// read values another process stored.
func Attach(st ports.Store, opts ...Option) *Cache {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache{st: st, logger: o.logger}

	var store instrument.Func[any, string] = c.put
	store = instrument.CallHistory(st, StoreIdentity, store, o.instrument...)
	store = instrument.CountCalls(st, StoreIdentity, store, o.instrument...)
	if o.tracer != nil {
		store = instrument.Traced(o.tracer, StoreIdentity, store)
	}
	c.store = store

	return c
}

// Identity is the identity Store calls are recorded under, for Replay.
func (c *Cache) Identity() string { return StoreIdentity }

// Store writes value under a new key and returns the key.
func (c *Cache) Store(ctx context.Context, value any) (string, error) {
	return c.store(ctx, value)
}

func (c *Cache) put(ctx context.Context, value any) (string, error) {
	raw, err := encode(value)
	if err != nil {
		return "", err
	}

	key := uuid.New().String()
	if err := c.st.Set(ctx, key, raw); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", key, err)
	}

	c.logger.Debug().Str("key", key).Int("size", len(raw)).Msg("value stored")
	return key, nil
}

// Get returns the raw bytes at key; ok is false when the key does not exist.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.st.Get(ctx, key)
}

// GetAs reads key and applies conv. A missing key yields the zero T and
// ok=false; converter errors are returned unchanged.
func GetAs[T any](ctx context.Context, c *Cache, key string, conv Converter[T]) (T, bool, error) {
	var zero T
	if conv == nil {
		return zero, false, ErrNilConverter
	}

	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}

	v, err := conv(raw)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// GetString reads key as UTF-8 text.
func (c *Cache) GetString(ctx context.Context, key string) (string, bool, error) {
	return GetAs(ctx, c, key, String)
}

// GetInt reads key as a base-10 integer.
func (c *Cache) GetInt(ctx context.Context, key string) (int64, bool, error) {
	return GetAs(ctx, c, key, Int)
}

// GetFloat reads key as a floating-point number.
func (c *Cache) GetFloat(ctx context.Context, key string) (float64, bool, error) {
	return GetAs(ctx, c, key, Float)
}

// String converts raw bytes to text.
func String(raw []byte) (string, error) { return string(raw), nil }

// Int parses raw bytes as a base-10 integer.
func Int(raw []byte) (int64, error) { return strconv.ParseInt(string(raw), 10, 64) }

// Float parses raw bytes as a float.
func Float(raw []byte) (float64, error) { return strconv.ParseFloat(string(raw), 64) }

// encode renders value the way Redis stores scalars: decimal text for
// numbers, bytes as is.
func encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case int:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int8:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int16:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int32:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int64:
		return strconv.AppendInt(nil, v, 10), nil
	case uint:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint8:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint16:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint32:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint64:
		return strconv.AppendUint(nil, v, 10), nil
	case float32:
		return strconv.AppendFloat(nil, float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.AppendFloat(nil, v, 'f', -1, 64), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}
}
