package adapters

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	ports "github.com/ZanzyTHEbar/kvtrace/kvtrace/store/ports"
)

// MemoryStore is an in-process Store. It follows Redis semantics closely
// enough for tests and single-process runs: counters are stored as decimal
// text, lists and strings live in separate slots, and expired keys vanish
// on first access.
type MemoryStore struct {
	mu     sync.Mutex
	items  map[string]*memItem
	now    func() time.Time
	closed bool
}

type memItem struct {
	value   []byte
	list    []string
	isList  bool
	expires time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*memItem),
		now:   time.Now,
	}
}

// Incr increments the decimal counter at key.
func (m *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ports.ErrStoreClosed
	}

	item := m.lookup(key)
	var n int64
	if item != nil {
		if item.isList {
			return 0, fmt.Errorf("incr %s: %w", key, ErrWrongType)
		}
		parsed, err := strconv.ParseInt(string(item.value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("incr %s: value is not an integer", key)
		}
		n = parsed
	} else {
		item = &memItem{}
		m.items[key] = item
	}

	n++
	item.value = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

// RPush appends value to the list at key.
func (m *MemoryStore) RPush(ctx context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ports.ErrStoreClosed
	}

	item := m.lookup(key)
	if item == nil {
		item = &memItem{isList: true}
		m.items[key] = item
	}
	if !item.isList {
		return fmt.Errorf("rpush %s: %w", key, ErrWrongType)
	}

	item.list = append(item.list, value)
	return nil
}

// LRange returns a copy of list elements between start and stop inclusive.
func (m *MemoryStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ports.ErrStoreClosed
	}

	item := m.lookup(key)
	if item == nil {
		return []string{}, nil
	}
	if !item.isList {
		return nil, fmt.Errorf("lrange %s: %w", key, ErrWrongType)
	}

	lo, hi, ok := clampRange(int64(len(item.list)), start, stop)
	if !ok {
		return []string{}, nil
	}

	out := make([]string, hi-lo+1)
	copy(out, item.list[lo:hi+1])
	return out, nil
}

// Get returns the string value at key.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false, ports.ErrStoreClosed
	}

	item := m.lookup(key)
	if item == nil {
		return nil, false, nil
	}
	if item.isList {
		return nil, false, fmt.Errorf("get %s: %w", key, ErrWrongType)
	}

	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, true, nil
}

// Set stores value at key, replacing whatever was there.
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	return m.set(key, value, time.Time{})
}

// SetEX stores value at key until ttl elapses.
func (m *MemoryStore) SetEX(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("setex %s: invalid ttl %s", key, ttl)
	}
	return m.set(key, value, m.now().Add(ttl))
}

// FlushAll removes every key.
func (m *MemoryStore) FlushAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ports.ErrStoreClosed
	}

	m.items = make(map[string]*memItem)
	return nil
}

// Close marks the store closed; later calls fail with ErrStoreClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryStore) set(key string, value []byte, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ports.ErrStoreClosed
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	m.items[key] = &memItem{value: stored, expires: expires}
	return nil
}

// lookup returns the live item at key, dropping it if expired. Caller holds mu.
func (m *MemoryStore) lookup(key string) *memItem {
	item, exists := m.items[key]
	if !exists {
		return nil
	}
	if !item.expires.IsZero() && !m.now().Before(item.expires) {
		delete(m.items, key)
		return nil
	}
	return item
}

// clampRange resolves Redis-style inclusive indexes against a list length.
func clampRange(length, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start += length
	}
	if stop < 0 {
		stop += length
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	if length == 0 || start > stop {
		return 0, 0, false
	}
	return start, stop, true
}

// Ensure MemoryStore implements the Store interface.
var _ ports.Store = (*MemoryStore)(nil)
