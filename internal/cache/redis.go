package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// RedisConfig holds the connection settings of a Redis cache.
type RedisConfig struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisCache stores JSON-encoded values in Redis.
type RedisCache[T any] struct {
	client rueidis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection with PING.
func NewRedisCache[T any](ctx context.Context, cfg RedisConfig) (*RedisCache[T], error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{cfg.Addr},
		Username:    cfg.Username,
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedisCacheWithClient[T](client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient[T any](client rueidis.Client, prefix string, ttl time.Duration) *RedisCache[T] {
	return &RedisCache[T]{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisCache[T]) key(k string) string {
	return r.prefix + k
}

func (r *RedisCache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	resp := r.client.Do(ctx, r.client.B().Get().Key(r.key(key)).Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	b, err := resp.AsBytes()
	if err != nil {
		return zero, false, fmt.Errorf("redis read %s: %w", key, err)
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return zero, false, fmt.Errorf("redis decode %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisCache[T]) Set(ctx context.Context, key string, data T) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", key, err)
	}
	cmd := r.client.B().Set().Key(r.key(key)).Value(string(b))
	if r.ttl > 0 {
		return r.client.Do(ctx, cmd.Ex(r.ttl).Build()).Error()
	}
	return r.client.Do(ctx, cmd.Build()).Error()
}

func (r *RedisCache[T]) Delete(ctx context.Context, key string) error {
	return r.client.Do(ctx, r.client.B().Del().Key(r.key(key)).Build()).Error()
}

func (r *RedisCache[T]) Close() {
	r.client.Close()
}
