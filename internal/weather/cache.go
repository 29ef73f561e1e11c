package weather

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores recent lookups. Implementations treat failures as misses.
type Cache interface {
	Get(ctx context.Context, key string) (*Conditions, bool)
	Set(ctx context.Context, key string, cond *Conditions, ttl time.Duration)
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	cond    Conditions
	expires time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements Cache.
func (m *MemoryCache) Get(_ context.Context, key string) (*Conditions, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	cond := e.cond
	return &cond, true
}

// Set implements Cache.
func (m *MemoryCache) Set(_ context.Context, key string, cond *Conditions, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{cond: *cond, expires: m.now().Add(ttl)}
}

// RedisCache is a Cache shared between replicas through Redis.
type RedisCache struct {
	rdb    redis.UniversalClient
	logger *slog.Logger
}

// NewRedisCache wraps an existing client.
func NewRedisCache(rdb redis.UniversalClient, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{rdb: rdb, logger: logger}
}

// DialRedis connects to addr and verifies it answers PING.
func DialRedis(ctx context.Context, addr string, logger *slog.Logger) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return NewRedisCache(rdb, logger), nil
}

// Close closes the underlying client.
func (r *RedisCache) Close() error {
	return r.rdb.Close()
}

// Get implements Cache.
func (r *RedisCache) Get(ctx context.Context, key string) (*Conditions, bool) {
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("weather cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var cond Conditions
	if err := json.Unmarshal(raw, &cond); err != nil {
		r.logger.Warn("weather cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return &cond, true
}

// Set implements Cache.
func (r *RedisCache) Set(ctx context.Context, key string, cond *Conditions, ttl time.Duration) {
	raw, err := json.Marshal(cond)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		r.logger.Warn("weather cache write failed", "key", key, "error", err)
	}
}
