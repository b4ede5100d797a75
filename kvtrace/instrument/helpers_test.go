package instrument

import (
	"context"
	"errors"
	"time"

	"github.com/ZanzyTHEbar/kvtrace/kvtrace/store/adapters"
	ports "github.com/ZanzyTHEbar/kvtrace/kvtrace/store/ports"
)

var errStoreDown = errors.New("store unreachable")

// spyStore wraps a MemoryStore, counts calls per method and can fail
// selected methods.
type spyStore struct {
	*adapters.MemoryStore
	calls map[string]int
	fail  map[string]bool
}

func newSpyStore() *spyStore {
	return &spyStore{
		MemoryStore: adapters.NewMemoryStore(),
		calls:       make(map[string]int),
		fail:        make(map[string]bool),
	}
}

func (s *spyStore) record(method string) error {
	s.calls[method]++
	if s.fail[method] {
		return errStoreDown
	}
	return nil
}

func (s *spyStore) Incr(ctx context.Context, key string) (int64, error) {
	if err := s.record("Incr"); err != nil {
		return 0, err
	}
	return s.MemoryStore.Incr(ctx, key)
}

func (s *spyStore) RPush(ctx context.Context, key string, value string) error {
	if err := s.record("RPush"); err != nil {
		return err
	}
	return s.MemoryStore.RPush(ctx, key, value)
}

func (s *spyStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if err := s.record("LRange"); err != nil {
		return nil, err
	}
	return s.MemoryStore.LRange(ctx, key, start, stop)
}

func (s *spyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.record("Get"); err != nil {
		return nil, false, err
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *spyStore) SetEX(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.record("SetEX"); err != nil {
		return err
	}
	return s.MemoryStore.SetEX(ctx, key, value, ttl)
}

var _ ports.Store = (*spyStore)(nil)

// square is the operation used throughout the tests.
func square(ctx context.Context, n int) (int, error) {
	return n * n, nil
}
