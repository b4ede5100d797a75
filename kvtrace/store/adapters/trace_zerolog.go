package adapters

import (
	"context"
	"time"

	ports "github.com/ZanzyTHEbar/kvtrace/kvtrace/store/ports"
	"github.com/rs/zerolog"
)

type spanLoggerKey struct{}

// ZerologTracer implements the Tracer interface by writing span start/end
// records through zerolog.
type ZerologTracer struct {
	logger zerolog.Logger
}

// NewZerologTracer creates a new zerolog tracer.
func NewZerologTracer(logger zerolog.Logger) *ZerologTracer {
	return &ZerologTracer{
		logger: logger,
	}
}

// StartSpan logs the span start and returns a finish func that logs its end.
func (t *ZerologTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	lc := t.logger.With().Str("span", name)
	for k, v := range attrs {
		lc = lc.Interface(k, v)
	}
	spanLogger := lc.Logger()

	ctx = context.WithValue(ctx, spanLoggerKey{}, spanLogger)
	startTime := time.Now()

	spanLogger.Debug().Str("event", "span_start").Msg("Starting span")

	finish := func(err error) {
		event := spanLogger.Debug()
		if err != nil {
			event = spanLogger.Error().Err(err)
		}

		event.
			Str("event", "span_end").
			Dur("duration", time.Since(startTime)).
			Msg("Ending span")
	}

	return ctx, finish
}

// Event logs name on the span logger found in ctx, or on the root logger.
func (t *ZerologTracer) Event(ctx context.Context, name string, attrs map[string]any) {
	logger, ok := ctx.Value(spanLoggerKey{}).(zerolog.Logger)
	if !ok {
		logger = t.logger
	}

	event := logger.Info()
	for k, v := range attrs {
		event = event.Interface(k, v)
	}
	event.Str("event", name).Msg("Tracing event")
}

// Ensure ZerologTracer implements the Tracer interface.
var _ ports.Tracer = (*ZerologTracer)(nil)
