package instrument

import (
	"context"
	"fmt"
	"io"
	"strconv"

	ports "github.com/ZanzyTHEbar/kvtrace/kvtrace/store/ports"
)

// CallRecord is one replayed call: encoded arguments and encoded result.
type CallRecord struct {
	Input  string
	Output string
}

// Trace is the recorded history of one identity.
type Trace struct {
	Identity string
	Called   bool
	Calls    int64
	Records  []CallRecord
	// Dropped counts log entries left without a partner because the input
	// and output logs had different lengths (an operation failed midway).
	Dropped int
}

// LoadTrace reads the counter and both logs of identity. When the counter is
// absent the logs are not read and Called is false.
func LoadTrace(ctx context.Context, st ports.Store, identity string, opts ...Option) (*Trace, error) {
	o := buildOptions(identity, opts)
	trace := &Trace{Identity: identity}

	raw, ok, err := st.Get(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("read call count of %s: %w", identity, err)
	}
	if !ok {
		return trace, nil
	}

	calls, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("read call count of %s: %w", identity, err)
	}
	trace.Called = true
	trace.Calls = calls

	inputs, err := st.LRange(ctx, InputsKey(identity), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read inputs of %s: %w", identity, err)
	}
	outputs, err := st.LRange(ctx, OutputsKey(identity), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read outputs of %s: %w", identity, err)
	}

	n := min(len(inputs), len(outputs))
	trace.Records = make([]CallRecord, n)
	for i := 0; i < n; i++ {
		trace.Records[i] = CallRecord{Input: inputs[i], Output: outputs[i]}
	}

	if dropped := len(inputs) + len(outputs) - 2*n; dropped > 0 {
		trace.Dropped = dropped
		o.logger.Warn().
			Int("inputs", len(inputs)).
			Int("outputs", len(outputs)).
			Msg("input and output logs differ in length, unpaired entries skipped")
	}

	return trace, nil
}

// Render writes the trace in call order, preceded by the call count.
func (t *Trace) Render(w io.Writer) error {
	if !t.Called {
		_, err := fmt.Fprintf(w, "%s has not been called yet.\n", t.Identity)
		return err
	}

	if _, err := fmt.Fprintf(w, "%s was called %d times:\n", t.Identity, t.Calls); err != nil {
		return err
	}
	for _, rec := range t.Records {
		if _, err := fmt.Fprintf(w, "%s(*%s) -> %s\n", t.Identity, rec.Input, rec.Output); err != nil {
			return err
		}
	}
	return nil
}

// Replay loads the trace of identity and renders it to w.
func Replay(ctx context.Context, st ports.Store, identity string, w io.Writer, opts ...Option) error {
	trace, err := LoadTrace(ctx, st, identity, opts...)
	if err != nil {
		return err
	}
	return trace.Render(w)
}
