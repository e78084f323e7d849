package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Cache is a small string key/value cache with TTLs.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns (nil, nil) on a miss.
	Get(ctx context.Context, key string) ([]byte, error)
	Key(operation, key string) string
}

type redisCache struct {
	client      *redis.Client
	serviceName string
}

func NewRedisCache(addr, serviceName string) Cache {
	return &redisCache{
		client:      redis.NewClient(&redis.Options{Addr: addr}),
		serviceName: serviceName,
	}
}

func (r *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.Wrap(r.client.Set(ctx, key, value, ttl).Err(), "redis set")
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}
	return b, nil
}

func (r *redisCache) Key(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.serviceName, operation, key)
}

// Memory is an in-process Cache used when no Redis address is configured.
// It holds at most size entries, each living for the TTL given to NewMemory.
type Memory struct {
	lru *expirable.LRU[string, []byte]
}

func NewMemory(size int, ttl time.Duration) *Memory {
	return &Memory{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Set ignores ttl in favour of the cache-wide one.
func (m *Memory) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.lru.Add(key, append([]byte(nil), value...))
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, nil
	}
	return v, nil
}

// Len is the number of live entries.
func (m *Memory) Len() int { return m.lru.Len() }

func (m *Memory) Key(operation, key string) string {
	return fmt.Sprintf("%s:%s", operation, key)
}
