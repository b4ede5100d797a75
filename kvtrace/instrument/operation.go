package instrument

import (
	"context"

	"github.com/rs/zerolog"
)

// Func is the shape of every operation the wrappers accept and return.
type Func[In, Out any] func(ctx context.Context, in In) (Out, error)

// Args carries several positional arguments through a single In value.
// CallHistory records an Args value as that many arguments instead of one.
type Args []any

// InputsKey is the list holding encoded arguments for identity.
func InputsKey(identity string) string { return identity + ":inputs" }

// OutputsKey is the list holding encoded results for identity.
func OutputsKey(identity string) string { return identity + ":outputs" }

type options struct {
	logger  zerolog.Logger
	codec   Codec
	metrics *Metrics
}

// Option configures a wrapper.
type Option func(*options)

// WithLogger sets the logger used for debug records of store writes.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCodec replaces the default TupleCodec.
func WithCodec(codec Codec) Option {
	return func(o *options) { o.codec = codec }
}

// WithMetrics records call and failure counts in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(identity string, opts []Option) options {
	o := options{
		logger: zerolog.Nop(),
		codec:  TupleCodec{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With().Str("identity", identity).Logger()
	return o
}
