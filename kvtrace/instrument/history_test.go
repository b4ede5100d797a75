package instrument

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallHistory_RecordsInputsAndOutputs(t *testing.T) {
	st := newSpyStore()
	ctx := context.Background()
	op := CallHistory(st, "op", square)

	for i := 1; i <= 3; i++ {
		_, err := op(ctx, i)
		require.NoError(t, err)
	}

	inputs, err := st.LRange(ctx, InputsKey("op"), 0, -1)
	require.NoError(t, err)
	outputs, err := st.LRange(ctx, OutputsKey("op"), 0, -1)
	require.NoError(t, err)

	assert.Equal(t, []string{"(1,)", "(2,)", "(3,)"}, inputs)
	assert.Equal(t, []string{"1", "4", "9"}, outputs)
}

// Every output entry must be the encoded result of running the operation on
// the decoded input at the same position.
func TestCallHistory_OutputsMatchDecodedInputs(t *testing.T) {
	st := newSpyStore()
	ctx := context.Background()
	codec := TupleCodec{}
	identity := "Math.Add"

	add := func(ctx context.Context, args Args) (int64, error) {
		var sum int64
		for _, a := range args {
			sum += a.(int64)
		}
		return sum, nil
	}
	op := CountCalls(st, identity, CallHistory(st, identity, add))

	calls := []Args{{int64(1), int64(2)}, {int64(10)}, {}, {int64(-4), int64(4), int64(7)}}
	for _, args := range calls {
		_, err := op(ctx, args)
		require.NoError(t, err)
	}

	raw, _, err := st.Get(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(len(calls)), string(raw))

	inputs, err := st.LRange(ctx, InputsKey(identity), 0, -1)
	require.NoError(t, err)
	outputs, err := st.LRange(ctx, OutputsKey(identity), 0, -1)
	require.NoError(t, err)
	require.Len(t, inputs, len(calls))
	require.Len(t, outputs, len(calls))

	for i := range inputs {
		decoded, err := codec.DecodeArgs(inputs[i])
		require.NoError(t, err)

		args := make(Args, len(decoded))
		for j, d := range decoded {
			n, err := d.(json.Number).Int64()
			require.NoError(t, err)
			args[j] = n
		}

		want, err := add(ctx, args)
		require.NoError(t, err)
		encoded, err := codec.EncodeResult(want)
		require.NoError(t, err)
		assert.Equal(t, encoded, outputs[i])
	}
}

func TestCallHistory_FailedCallSkipsOutput(t *testing.T) {
	st := newSpyStore()
	ctx := context.Background()
	opErr := errors.New("division by zero")

	op := CallHistory(st, "div", func(ctx context.Context, args Args) (int, error) {
		return 0, opErr
	})

	_, err := op(ctx, Args{1, 0})
	assert.ErrorIs(t, err, opErr)

	inputs, err := st.LRange(ctx, InputsKey("div"), 0, -1)
	require.NoError(t, err)
	outputs, err := st.LRange(ctx, OutputsKey("div"), 0, -1)
	require.NoError(t, err)

	assert.Equal(t, []string{"(1, 0)"}, inputs)
	assert.Empty(t, outputs)
}

func TestCallHistory_StoreErrorBeforeCall(t *testing.T) {
	st := newSpyStore()
	st.fail["RPush"] = true

	called := false
	op := CallHistory(st, "op", func(ctx context.Context, n int) (int, error) {
		called = true
		return n, nil
	})

	_, err := op(context.Background(), 1)
	assert.ErrorIs(t, err, errStoreDown)
	assert.False(t, called)
}

func TestCallHistory_ReturnsOriginalResult(t *testing.T) {
	st := newSpyStore()
	type point struct{ X, Y int }

	op := CallHistory(st, "origin", func(ctx context.Context, _ string) (point, error) {
		return point{X: 1, Y: 2}, nil
	})

	out, err := op(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, point{X: 1, Y: 2}, out)

	outputs, err := st.LRange(context.Background(), OutputsKey("origin"), 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"X":1,"Y":2}`}, outputs)
}
