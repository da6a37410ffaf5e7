package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed bool
	Count   int
	ResetAt time.Time
}

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
	Close() error
}

// windowStart truncates now to the fixed window the request falls in.
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

type RedisLimiter struct {
	redis *redis.Client
	now   func() time.Time
}

func NewRedisLimiter(ctx context.Context, redisURL string) (*RedisLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisLimiter{redis: client, now: time.Now}, nil
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	start := windowStart(rl.now(), window)
	windowKey := fmt.Sprintf("ratelimit:%s:%d", key, start.Unix())

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	count := int(incr.Val())
	return Result{Allowed: count <= limit, Count: count, ResetAt: start.Add(window)}, nil
}

func (rl *RedisLimiter) Close() error {
	return rl.redis.Close()
}

// MemoryLimiter is the single-process fallback used when no Redis URL is
// configured.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

type memoryWindow struct {
	start time.Time
	count int
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

func (ml *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	start := windowStart(ml.now(), window)

	w, ok := ml.windows[key]
	if !ok || !w.start.Equal(start) {
		w = &memoryWindow{start: start}
		ml.windows[key] = w
		ml.evict(start)
	}

	w.count++

	return Result{Allowed: w.count <= limit, Count: w.count, ResetAt: start.Add(window)}, nil
}

// evict drops windows older than current so the map does not grow with every
// client ever seen.
func (ml *MemoryLimiter) evict(current time.Time) {
	for key, w := range ml.windows {
		if w.start.Before(current) {
			delete(ml.windows, key)
		}
	}
}

func (ml *MemoryLimiter) Close() error {
	return nil
}
