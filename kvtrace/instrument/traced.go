package instrument

import (
	"context"

	ports "github.com/ZanzyTHEbar/kvtrace/kvtrace/store/ports"
)

// Traced opens a span named identity around every call to fn.
func Traced[In, Out any](tracer ports.Tracer, identity string, fn Func[In, Out]) Func[In, Out] {
	return func(ctx context.Context, in In) (Out, error) {
		ctx, finish := tracer.StartSpan(ctx, identity, map[string]any{"identity": identity})
		out, err := fn(ctx, in)
		finish(err)
		return out, err
	}
}
