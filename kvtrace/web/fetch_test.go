package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/kvtrace/kvtrace/store/adapters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	body, err := NewHTTPFetcher(time.Second, nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", body)
}

func TestHTTPFetcher_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(time.Second, nil).Fetch(context.Background(), srv.URL)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestHTTPFetcher_RateLimited(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(time.Second, adapters.NewTokenBucket(1, time.Hour))

	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL+"/again")
	assert.ErrorIs(t, err, adapters.ErrRateLimitExceeded)
	assert.Equal(t, int32(1), hits.Load())
}

// The cache sits in front of the fetcher: the server sees one request.
func TestCachePage_WithHTTPFetcher(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("cached body"))
	}))
	defer srv.Close()

	st := adapters.NewMemoryStore()
	get := CachePage(st, time.Minute, NewHTTPFetcher(time.Second, nil).Fetch)

	for i := 0; i < 3; i++ {
		body, err := get(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "cached body", body)
	}
	assert.Equal(t, int32(1), hits.Load())

	n, err := AccessCount(context.Background(), st, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
