// Package ratelimit implements fixed window request counters.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/coffeehubnepal/api/core"
)

type (
	Result struct {
		Allowed   bool
		Remaining int
		ResetIn   time.Duration
	}

	// Limiter counts hits per key in fixed windows.
	Limiter interface {
		Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
	}
)

func newResult(count int64, limit int, resetIn time.Duration) Result {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: count <= int64(limit), Remaining: remaining, ResetIn: resetIn}
}

// New returns a redis backed limiter when redisURL is set, an in-memory one otherwise.
func New(redisURL string, logger core.Logger) (Limiter, func() error, error) {
	if redisURL == "" {
		return NewMemoryLimiter(), func() error { return nil }, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parsing redis url")
	}
	rdb := redis.NewClient(opts)
	return NewRedisLimiter(rdb, logger), rdb.Close, nil
}

type redisLimiter struct {
	rdb    *redis.Client
	prefix string
	logger core.Logger
}

var _ Limiter = (*redisLimiter)(nil)

func NewRedisLimiter(rdb *redis.Client, logger core.Logger) Limiter {
	return &redisLimiter{rdb: rdb, prefix: "ratelimit:", logger: logger}
}

// Allow fails open: redis errors are logged and the hit is allowed.
func (l *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	key = l.prefix + key
	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn("ratelimit: redis unavailable, allowing request", err)
		return Result{Allowed: true, Remaining: limit}, nil
	}

	// first hit opens the window
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, window).Err(); err != nil {
			l.logger.Warn("ratelimit: setting window expiry", err)
		}
	}

	ttl, err := l.rdb.PTTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return newResult(count, limit, ttl), nil
}

type (
	window struct {
		count   int64
		resetAt time.Time
	}

	memoryLimiter struct {
		mu      sync.Mutex
		windows map[string]*window
		nowFunc func() time.Time
	}
)

var _ Limiter = (*memoryLimiter)(nil)

func NewMemoryLimiter() *memoryLimiter {
	return &memoryLimiter{windows: make(map[string]*window), nowFunc: time.Now}
}

func (l *memoryLimiter) Allow(_ context.Context, key string, limit int, win time.Duration) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		l.gc(now)
		w = &window{resetAt: now.Add(win)}
		l.windows[key] = w
	}
	w.count++
	return newResult(w.count, limit, w.resetAt.Sub(now)), nil
}

// gc drops expired windows; callers hold l.mu.
func (l *memoryLimiter) gc(now time.Time) {
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
}
