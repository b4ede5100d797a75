// Package web caches fetched pages in the store for a fixed time window and
// counts how often each URL was requested.
package web

import (
	"context"
	"fmt"
	"strconv"
	"time"

	ports "github.com/ZanzyTHEbar/kvtrace/kvtrace/store/ports"
	"github.com/rs/zerolog"
)

// FetchFunc retrieves the body of url.
type FetchFunc func(ctx context.Context, url string) (string, error)

// CacheKey holds the cached body of url.
func CacheKey(url string) string { return "cache:" + url }

// CountKey holds the access counter of url.
func CountKey(url string) string { return "count:" + url }

type options struct {
	logger  zerolog.Logger
	metrics *Metrics
	tracer  ports.Tracer
}

// Option configures CachePage.
type Option func(*options)

// WithLogger logs hits and misses at debug level.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTracer opens a span per lookup and marks it with a hit or miss event.
func WithTracer(tracer ports.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

// WithMetrics counts hits and misses in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// CachePage wraps fetch so that bodies are kept at cache:<url> for ttl.
// count:<url> is incremented on every call, hit or miss, and never expires.
// Concurrent misses for one URL may both fetch; the last write wins.
func CachePage(st ports.Store, ttl time.Duration, fetch FetchFunc, opts ...Option) FetchFunc {
	if ttl <= 0 {
		panic(fmt.Sprintf("web: CachePage needs a positive ttl, got %s", ttl))
	}

	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	lookup := func(ctx context.Context, url string) (string, error) {
		if _, err := st.Incr(ctx, CountKey(url)); err != nil {
			return "", fmt.Errorf("count access to %s: %w", url, err)
		}

		cached, ok, err := st.Get(ctx, CacheKey(url))
		if err != nil {
			return "", fmt.Errorf("read cached page %s: %w", url, err)
		}
		if ok {
			o.metrics.hit()
			o.event(ctx, "page_cache.hit", url)
			o.logger.Debug().Str("url", url).Msg("page cache hit")
			return string(cached), nil
		}

		o.metrics.miss()
		o.event(ctx, "page_cache.miss", url)
		o.logger.Debug().Str("url", url).Dur("ttl", ttl).Msg("page cache miss")

		body, err := fetch(ctx, url)
		if err != nil {
			return "", err
		}

		if err := st.SetEX(ctx, CacheKey(url), []byte(body), ttl); err != nil {
			return "", fmt.Errorf("cache page %s: %w", url, err)
		}
		return body, nil
	}

	if o.tracer == nil {
		return lookup
	}
	return func(ctx context.Context, url string) (string, error) {
		ctx, finish := o.tracer.StartSpan(ctx, "web.CachePage", map[string]any{"url": url})
		body, err := lookup(ctx, url)
		finish(err)
		return body, err
	}
}

func (o *options) event(ctx context.Context, name, url string) {
	if o.tracer != nil {
		o.tracer.Event(ctx, name, map[string]any{"url": url})
	}
}

// AccessCount reports how many times url went through CachePage.
func AccessCount(ctx context.Context, st ports.Store, url string) (int64, error) {
	raw, ok, err := st.Get(ctx, CountKey(url))
	if err != nil {
		return 0, fmt.Errorf("read access count of %s: %w", url, err)
	}
	if !ok {
		return 0, nil
	}

	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("read access count of %s: %w", url, err)
	}
	return n, nil
}
