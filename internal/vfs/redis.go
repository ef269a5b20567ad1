package vfs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig holds the Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisBackend implements Backend on Redis strings with native TTLs
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to Redis and verifies the connection
func NewRedisBackend(config *RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBackend{client: client}, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("redis set", err)
	}
	return nil
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("redis get", err)
	}
	return val, nil
}

func (b *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return false, unavailable("redis exists", err)
	}
	return n > 0, nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return unavailable("redis del", err)
	}
	return nil
}

func (b *RedisBackend) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := b.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, unavailable("redis expire", err)
	}
	return ok, nil
}

// ScanPrefix walks SCAN with a MATCH pattern; glob characters in the prefix are escaped
func (b *RedisBackend) ScanPrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	pattern := globEscaper.Replace(prefix) + "*"
	iter := b.client.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if limit > 0 && len(keys) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("redis scan", err)
	}
	return keys, nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return unavailable("redis ping", err)
	}
	return nil
}

// Close closes the Redis connection
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
