package web

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/kvtrace/kvtrace/store/adapters"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "http://example.com/page"

// countingFetch returns a FetchFunc serving body and the number of times it ran.
func countingFetch(body string) (FetchFunc, *int32) {
	var calls int32
	return func(ctx context.Context, url string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return body, nil
	}, &calls
}

func newRedis(t *testing.T) (*adapters.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	st, err := adapters.NewRedisStore(context.Background(), adapters.RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, mr
}

func TestCachePage_HitWithinTTL(t *testing.T) {
	st, mr := newRedis(t)
	ctx := context.Background()
	fetch, calls := countingFetch("<html>hello</html>")
	get := CachePage(st, 10*time.Second, fetch)

	first, err := get(ctx, testURL)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	second, err := get(ctx, testURL)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls), "second call within the ttl must not fetch")
	assert.Equal(t, first, second)

	assert.Equal(t, 10*time.Second, mr.TTL(CacheKey(testURL)))
	assert.Equal(t, time.Duration(0), mr.TTL(CountKey(testURL)), "access counter never expires")

	n, err := AccessCount(ctx, st, testURL)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCachePage_RefetchAfterExpiry(t *testing.T) {
	st, mr := newRedis(t)
	ctx := context.Background()
	fetch, calls := countingFetch("body")
	get := CachePage(st, 10*time.Second, fetch)

	_, err := get(ctx, testURL)
	require.NoError(t, err)

	mr.FastForward(11 * time.Second)

	_, err = get(ctx, testURL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))

	n, err := AccessCount(ctx, st, testURL)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCachePage_URLsAreIndependent(t *testing.T) {
	st := adapters.NewMemoryStore()
	ctx := context.Background()
	fetch := func(ctx context.Context, url string) (string, error) { return "page of " + url, nil }
	get := CachePage(st, time.Minute, fetch)

	a, err := get(ctx, "http://a.test")
	require.NoError(t, err)
	b, err := get(ctx, "http://b.test")
	require.NoError(t, err)
	_, err = get(ctx, "http://a.test")
	require.NoError(t, err)

	assert.Equal(t, "page of http://a.test", a)
	assert.Equal(t, "page of http://b.test", b)

	na, err := AccessCount(ctx, st, "http://a.test")
	require.NoError(t, err)
	nb, err := AccessCount(ctx, st, "http://b.test")
	require.NoError(t, err)
	assert.Equal(t, int64(2), na)
	assert.Equal(t, int64(1), nb)
}

func TestCachePage_FetchErrorNotCached(t *testing.T) {
	st := adapters.NewMemoryStore()
	ctx := context.Background()
	fetchErr := errors.New("connection refused")

	get := CachePage(st, time.Minute, func(ctx context.Context, url string) (string, error) {
		return "", fetchErr
	})

	_, err := get(ctx, testURL)
	assert.ErrorIs(t, err, fetchErr)

	_, ok, err := st.Get(ctx, CacheKey(testURL))
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := AccessCount(ctx, st, testURL)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "failed requests are still counted")
}

func TestCachePage_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, "kvtrace")
	require.NoError(t, err)

	fetch, _ := countingFetch("body")
	get := CachePage(adapters.NewMemoryStore(), time.Minute, fetch, WithMetrics(m))

	for i := 0; i < 3; i++ {
		_, err := get(context.Background(), testURL)
		require.NoError(t, err)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookups.WithLabelValues("miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.lookups.WithLabelValues("hit")))
}

// eventTracer records span names and event names in order.
type eventTracer struct {
	mu     sync.Mutex
	spans  []string
	events []string
}

func (r *eventTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	r.mu.Lock()
	r.spans = append(r.spans, name)
	r.mu.Unlock()
	return ctx, func(err error) {}
}

func (r *eventTracer) Event(ctx context.Context, name string, attrs map[string]any) {
	r.mu.Lock()
	r.events = append(r.events, name+" "+attrs["url"].(string))
	r.mu.Unlock()
}

func TestCachePage_TracerEvents(t *testing.T) {
	tracer := &eventTracer{}
	fetch, _ := countingFetch("body")
	get := CachePage(adapters.NewMemoryStore(), time.Minute, fetch, WithTracer(tracer))

	for i := 0; i < 2; i++ {
		_, err := get(context.Background(), testURL)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"web.CachePage", "web.CachePage"}, tracer.spans)
	assert.Equal(t, []string{"page_cache.miss " + testURL, "page_cache.hit " + testURL}, tracer.events)
}

func TestCachePage_NonPositiveTTLPanics(t *testing.T) {
	fetch, _ := countingFetch("body")
	assert.Panics(t, func() {
		CachePage(adapters.NewMemoryStore(), 0, fetch)
	})
}

func TestAccessCount_NeverRequested(t *testing.T) {
	n, err := AccessCount(context.Background(), adapters.NewMemoryStore(), testURL)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCachePage_ConcurrentCallersAllCounted(t *testing.T) {
	const callers = 32
	st, _ := newRedis(t)
	ctx := context.Background()
	fetch, calls := countingFetch("body")
	get := CachePage(st, time.Minute, fetch)

	var wg conc.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Go(func() {
			body, err := get(ctx, testURL)
			assert.NoError(t, err)
			assert.Equal(t, "body", body)
		})
	}
	wg.Wait()

	n, err := AccessCount(ctx, st, testURL)
	require.NoError(t, err)
	assert.Equal(t, int64(callers), n)

	// Concurrent misses may each fetch, but never more than once per caller.
	fetched := atomic.LoadInt32(calls)
	assert.GreaterOrEqual(t, fetched, int32(1))
	assert.LessOrEqual(t, fetched, int32(callers))
}
