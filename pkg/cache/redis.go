package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "switchboard:cache:"

// Redis is a Store backed by a Redis server. Keys carry a prefix so Flush
// only removes switchboard entries.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
	hits   atomic.Int64
	misses atomic.Int64
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithPrefix changes the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// NewRedis connects using a redis:// URL and pings the server.
func NewRedis(ctx context.Context, url string, opts ...RedisOption) (*Redis, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisFromClient(rdb, opts...), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(rdb redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{rdb: rdb, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Get(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		r.misses.Add(1)
		return nil, false, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	r.hits.Add(1)
	return &entry, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	if entry == nil {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := r.rdb.Set(ctx, r.prefix+key, data, effectiveTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Flush deletes every key under the prefix using SCAN.
func (r *Redis) Flush(ctx context.Context) error {
	keys, err := r.keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (r *Redis) Stats(ctx context.Context) (Stats, error) {
	keys, err := r.keys(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Backend: "redis",
		Keys:    int64(len(keys)),
		Hits:    r.hits.Load(),
		Misses:  r.misses.Load(),
	}, nil
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}
	return keys, nil
}
