package instrument

import (
	"context"
	"fmt"

	ports "github.com/ZanzyTHEbar/kvtrace/kvtrace/store/ports"
)

// CallHistory appends the encoded arguments of every call to the input log,
// runs fn, then appends the encoded result to the output log. When fn fails
// nothing is appended to the output log and fn's error is returned as is.
func CallHistory[In, Out any](st ports.Store, identity string, fn Func[In, Out], opts ...Option) Func[In, Out] {
	o := buildOptions(identity, opts)
	inputsKey, outputsKey := InputsKey(identity), OutputsKey(identity)

	return func(ctx context.Context, in In) (Out, error) {
		var zero Out

		args, err := o.codec.EncodeArgs(in)
		if err != nil {
			return zero, fmt.Errorf("record input of %s: %w", identity, err)
		}
		if err := st.RPush(ctx, inputsKey, args); err != nil {
			return zero, fmt.Errorf("record input of %s: %w", identity, err)
		}

		out, err := fn(ctx, in)
		if err != nil {
			o.logger.Debug().Err(err).Str("input", args).Msg("call failed, output not recorded")
			return out, err
		}

		result, err := o.codec.EncodeResult(out)
		if err != nil {
			return zero, fmt.Errorf("record output of %s: %w", identity, err)
		}
		if err := st.RPush(ctx, outputsKey, result); err != nil {
			return zero, fmt.Errorf("record output of %s: %w", identity, err)
		}

		o.logger.Debug().Str("input", args).Str("output", result).Msg("call recorded")
		return out, nil
	}
}
