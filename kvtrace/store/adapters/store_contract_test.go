package adapters

import (
	"context"
	"testing"
	"time"

	ports "github.com/ZanzyTHEbar/kvtrace/kvtrace/store/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract checks the behaviour every Store backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) ports.Store) {
	t.Run("IncrStartsAtZero", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		n, err := st.Incr(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = st.Incr(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		raw, ok, err := st.Get(ctx, "counter")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "2", string(raw))
	})

	t.Run("GetMissingKey", func(t *testing.T) {
		st := newStore(t)

		raw, ok, err := st.Get(context.Background(), "missing")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, raw)
	})

	t.Run("SetThenGet", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		require.NoError(t, st.Set(ctx, "k", []byte("hello")))
		require.NoError(t, st.Set(ctx, "bin", []byte{0x00, 0xff, 0x10}))

		raw, ok, err := st.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("hello"), raw)

		raw, ok, err = st.Get(ctx, "bin")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte{0x00, 0xff, 0x10}, raw)
	})

	t.Run("ListsKeepOrder", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		for _, v := range []string{"a", "b", "c"} {
			require.NoError(t, st.RPush(ctx, "list", v))
		}

		all, err := st.LRange(ctx, "list", 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, all)

		middle, err := st.LRange(ctx, "list", 1, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, middle)

		tail, err := st.LRange(ctx, "list", -2, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, tail)

		missing, err := st.LRange(ctx, "nope", 0, -1)
		require.NoError(t, err)
		assert.Empty(t, missing)
	})

	t.Run("SetEXIsReadable", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		require.NoError(t, st.SetEX(ctx, "page", []byte("<html>"), time.Minute))

		raw, ok, err := st.Get(ctx, "page")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "<html>", string(raw))
	})

	t.Run("FlushAllDropsEverything", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		require.NoError(t, st.Set(ctx, "k", []byte("v")))
		require.NoError(t, st.RPush(ctx, "l", "x"))
		_, err := st.Incr(ctx, "c")
		require.NoError(t, err)

		require.NoError(t, st.FlushAll(ctx))

		_, ok, err := st.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = st.Get(ctx, "c")
		require.NoError(t, err)
		assert.False(t, ok)

		list, err := st.LRange(ctx, "l", 0, -1)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
