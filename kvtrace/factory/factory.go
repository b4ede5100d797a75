// Package factory builds the store handle and the cross-cutting adapters
// (tracer, rate limiter, metrics, logger) from configuration.
package factory

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/kvtrace/kvtrace/config"
	"github.com/ZanzyTHEbar/kvtrace/kvtrace/instrument"
	"github.com/ZanzyTHEbar/kvtrace/kvtrace/store/adapters"
	ports "github.com/ZanzyTHEbar/kvtrace/kvtrace/store/ports"
	"github.com/ZanzyTHEbar/kvtrace/kvtrace/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Factory creates and wires components from configuration.
type Factory struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry prometheus.Registerer
	traceOut io.Writer

	providerOnce sync.Once
	provider     *sdktrace.TracerProvider
	providerErr  error
}

// Option configures a Factory.
type Option func(*Factory)

// WithTraceOutput sets where the stdout span exporter writes. Defaults to os.Stderr.
func WithTraceOutput(w io.Writer) Option {
	return func(f *Factory) { f.traceOut = w }
}

// NewFactory creates a new factory. A nil registry means prometheus.DefaultRegisterer.
func NewFactory(cfg *config.Config, logger zerolog.Logger, registry prometheus.Registerer, opts ...Option) *Factory {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	f := &Factory{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		traceOut: os.Stderr,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// OpenStore connects to the configured backend. The caller owns the handle
// and must Close it.
func (f *Factory) OpenStore(ctx context.Context) (ports.Store, error) {
	storeCfg := f.cfg.Store

	switch storeCfg.Backend {
	case "redis":
		f.logger.Info().Str("addr", storeCfg.Redis.Addr).Int("db", storeCfg.Redis.DB).Msg("Connecting to redis")
		st, err := adapters.NewRedisStore(ctx, adapters.RedisOptions{
			Addr:        storeCfg.Redis.Addr,
			Password:    storeCfg.Redis.Password,
			DB:          storeCfg.Redis.DB,
			DialTimeout: storeCfg.Redis.DialTimeout,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	case "memory":
		f.logger.Info().Msg("Using in-memory store")
		return adapters.NewMemoryStore(), nil
	case "libsql":
		f.logger.Info().Str("path", storeCfg.LibSQL.Path).Msg("Opening libsql store")
		st, err := adapters.OpenLibSQLStore(ctx, storeCfg.LibSQL.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", storeCfg.Backend)
	}
}

// CreateTracer creates a tracer adapter from config. The "otel" backend
// shares one SDK provider per factory; Shutdown flushes it.
func (f *Factory) CreateTracer() (ports.Tracer, error) {
	switch f.cfg.Tracing.Backend {
	case "zerolog":
		return adapters.NewZerologTracer(f.logger), nil
	case "otel":
		tp, err := f.tracerProvider()
		if err != nil {
			return nil, err
		}
		return adapters.NewOTelTracer(tp, f.cfg.Tracing.ServiceName), nil
	default:
		return noOpTracer{}, nil
	}
}

func (f *Factory) tracerProvider() (*sdktrace.TracerProvider, error) {
	f.providerOnce.Do(func() {
		tc := f.cfg.Tracing

		var exporter sdktrace.SpanExporter
		switch tc.Exporter {
		case "stdout":
			opts := []stdouttrace.Option{stdouttrace.WithWriter(f.traceOut)}
			if tc.PrettyPrint {
				opts = append(opts, stdouttrace.WithPrettyPrint())
			}
			exporter, f.providerErr = stdouttrace.New(opts...)
		default:
			f.providerErr = fmt.Errorf("unknown tracing exporter %q", tc.Exporter)
		}
		if f.providerErr != nil {
			return
		}

		f.provider = sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(tc.SampleRatio))),
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceNameKey.String(tc.ServiceName),
			)),
		)
		otel.SetTracerProvider(f.provider)
		f.logger.Debug().Str("exporter", tc.Exporter).Float64("sample_ratio", tc.SampleRatio).Msg("OpenTelemetry tracing enabled")
	})
	return f.provider, f.providerErr
}

// Shutdown flushes and stops the tracer provider, if one was created.
func (f *Factory) Shutdown(ctx context.Context) error {
	if f.provider == nil {
		return nil
	}
	if err := f.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down tracer provider: %w", err)
	}
	return nil
}

// CreateRateLimiter creates the per-host limiter for page fetches.
func (f *Factory) CreateRateLimiter() ports.RateLimiter {
	pc := f.cfg.PageCache
	if !pc.RateLimitEnabled {
		return noOpRateLimiter{}
	}
	return adapters.NewTokenBucket(pc.RateLimitCapacity, pc.RateLimitRefillRate)
}

// CreateInstrumentMetrics returns nil when metrics are disabled; the
// wrappers accept a nil *Metrics.
func (f *Factory) CreateInstrumentMetrics() (*instrument.Metrics, error) {
	if !f.cfg.Metrics.Enabled {
		return nil, nil
	}
	return instrument.NewMetrics(f.registry, f.cfg.Metrics.Namespace)
}

// CreateWebMetrics returns nil when metrics are disabled.
func (f *Factory) CreateWebMetrics() (*web.Metrics, error) {
	if !f.cfg.Metrics.Enabled {
		return nil, nil
	}
	return web.NewMetrics(f.registry, f.cfg.Metrics.Namespace)
}

// CreatePageFetcher wraps an HTTP fetcher in the expiring page cache.
func (f *Factory) CreatePageFetcher(st ports.Store) (web.FetchFunc, error) {
	metrics, err := f.CreateWebMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to register page cache metrics: %w", err)
	}

	tracer, err := f.CreateTracer()
	if err != nil {
		return nil, err
	}

	fetcher := web.NewHTTPFetcher(f.cfg.PageCache.FetchTimeout, f.CreateRateLimiter())
	return web.CachePage(st, f.cfg.PageCache.TTL, fetcher.Fetch,
		web.WithLogger(f.logger.With().Str("component", "page_cache").Logger()),
		web.WithMetrics(metrics),
		web.WithTracer(tracer),
	), nil
}

// NewLogger builds the process logger from config.
func NewLogger(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// noOpTracer implements Tracer with no-op behavior for disabled tracing.
type noOpTracer struct{}

func (noOpTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	return ctx, func(err error) {}
}

func (noOpTracer) Event(ctx context.Context, name string, attrs map[string]any) {}

// noOpRateLimiter implements RateLimiter with no-op behavior.
type noOpRateLimiter struct{}

func (noOpRateLimiter) Acquire(ctx context.Context, key string) (release func(), err error) {
	return func() {}, nil
}

// Ensure all no-op types implement their interfaces.
var (
	_ ports.Tracer      = noOpTracer{}
	_ ports.RateLimiter = noOpRateLimiter{}
)
