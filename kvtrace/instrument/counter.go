package instrument

import (
	"context"
	"fmt"

	ports "github.com/ZanzyTHEbar/kvtrace/kvtrace/store/ports"
)

// CountCalls increments the counter at identity before every call to fn.
// A failed increment is returned before fn runs.
func CountCalls[In, Out any](st ports.Store, identity string, fn Func[In, Out], opts ...Option) Func[In, Out] {
	o := buildOptions(identity, opts)

	return func(ctx context.Context, in In) (Out, error) {
		n, err := st.Incr(ctx, identity)
		if err != nil {
			var zero Out
			return zero, fmt.Errorf("increment %s: %w", identity, err)
		}
		o.logger.Debug().Int64("calls", n).Msg("call counted")

		out, err := fn(ctx, in)
		o.metrics.observe(identity, err)
		return out, err
	}
}
