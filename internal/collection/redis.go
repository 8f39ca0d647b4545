package collection

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces collection keys in a shared Redis.
const DefaultRedisKeyPrefix = "travelog:collection:"

// RedisBackend stores each collection as one string value. SET replaces
// the value atomically.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend wraps client. An empty prefix uses DefaultRedisKeyPrefix.
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

// NewRedisBackendFromURL parses a redis:// URL and connects lazily.
func NewRedisBackendFromURL(url, prefix string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisBackend(redis.NewClient(opts), prefix), nil
}

// Name implements Backend.
func (b *RedisBackend) Name() string { return "redis" }

// Client exposes the underlying client for health checks.
func (b *RedisBackend) Client() *redis.Client { return b.client }

// Key returns the Redis key for a collection.
func (b *RedisBackend) Key(name string) string { return b.prefix + name }

// Read implements Backend.
func (b *RedisBackend) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := b.client.Get(ctx, b.Key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write implements Backend.
func (b *RedisBackend) Write(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return b.client.Set(ctx, b.Key(name), data, 0).Err()
}

// Ping implements Backend.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close releases the client's connections.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
