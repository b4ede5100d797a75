package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	ports "github.com/ZanzyTHEbar/kvtrace/kvtrace/store/ports"
	"github.com/redis/go-redis/v9"
)

// RedisOptions holds connection details for a Redis server.
type RedisOptions struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// RedisStore implements Store on top of a go-redis client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore dials Redis and verifies the connection with a PING.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", opts.Addr, err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an already configured client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr increments the counter at key.
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, s.wrap(err)
	}
	return n, nil
}

// RPush appends value to the list at key.
func (s *RedisStore) RPush(ctx context.Context, key string, value string) error {
	return s.wrap(s.client.RPush(ctx, key, value).Err())
}

// LRange reads a slice of the list at key.
func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	values, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, s.wrap(err)
	}
	return values, nil
}

// Get reads the raw value at key. redis.Nil maps to ok=false.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.wrap(err)
	}
	return value, true, nil
}

// Set stores value at key without expiry.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.wrap(s.client.Set(ctx, key, value, 0).Err())
}

// SetEX stores value at key with a TTL enforced by Redis.
func (s *RedisStore) SetEX(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.wrap(s.client.SetEx(ctx, key, value, ttl).Err())
}

// FlushAll drops the whole selected database.
func (s *RedisStore) FlushAll(ctx context.Context) error {
	return s.wrap(s.client.FlushDB(ctx).Err())
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) wrap(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return ports.ErrStoreClosed
	}
	return err
}

// Ensure RedisStore implements the Store interface.
var _ ports.Store = (*RedisStore)(nil)
