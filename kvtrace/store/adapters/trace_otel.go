package adapters

import (
	"context"
	"fmt"

	ports "github.com/ZanzyTHEbar/kvtrace/kvtrace/store/ports"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelTracer implements the Tracer interface on an OpenTelemetry tracer.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer creates a tracer named after the instrumentation scope.
func NewOTelTracer(provider trace.TracerProvider, scope string) *OTelTracer {
	return &OTelTracer{tracer: provider.Tracer(scope)}
}

// StartSpan opens an OTel span; the returned func records err and ends it.
func (t *OTelTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))

	finish := func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
	return ctx, finish
}

// Event adds an event to the span in ctx. Without a recording span it is a no-op.
func (t *OTelTracer) Event(ctx context.Context, name string, attrs map[string]any) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(toAttributes(attrs)...))
}

func toAttributes(attrs map[string]any) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			kvs = append(kvs, attribute.String(k, val))
		case int:
			kvs = append(kvs, attribute.Int(k, val))
		case int64:
			kvs = append(kvs, attribute.Int64(k, val))
		case float64:
			kvs = append(kvs, attribute.Float64(k, val))
		case bool:
			kvs = append(kvs, attribute.Bool(k, val))
		default:
			kvs = append(kvs, attribute.String(k, fmt.Sprint(val)))
		}
	}
	return kvs
}

// Ensure OTelTracer implements the Tracer interface.
var _ ports.Tracer = (*OTelTracer)(nil)
