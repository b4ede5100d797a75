package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	ports "github.com/ZanzyTHEbar/kvtrace/kvtrace/store/ports"
)

// HTTPFetcher performs plain GET requests. It never retries.
type HTTPFetcher struct {
	client  *http.Client
	limiter ports.RateLimiter
}

// NewHTTPFetcher creates a fetcher with the given request timeout. A nil
// limiter disables throttling.
func NewHTTPFetcher(timeout time.Duration, limiter ports.RateLimiter) *HTTPFetcher {
	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

// Fetch returns the response body of rawURL as text. Non-2xx responses are
// errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	if f.limiter != nil {
		release, err := f.limiter.Acquire(ctx, u.Host)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", rawURL, err)
		}
		defer release()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body of %s: %w", rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return string(body), nil
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}
