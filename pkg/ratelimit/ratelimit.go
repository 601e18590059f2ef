// Package ratelimit provides request rate limiters backed by Redis or process memory
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter defines the interface for rate limiting
type RateLimiter interface {
	// Allow checks if the request is allowed for the given key and limit
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// Limit defines the rate limit rule
type Limit struct {
	Rate   int
	Period time.Duration
	Burst  int
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAfter time.Duration
	RetryAfter time.Duration
}

// RedisRateLimiter implements RateLimiter using Redis (GCRA)
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
}

// NewRedisRateLimiter creates a new RedisRateLimiter
func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
	}
}

// Allow checks if the request is allowed
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	res, err := r.limiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit.Rate,
		Period: limit.Period,
		Burst:  limit.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		ResetAfter: res.ResetAfter,
		RetryAfter: res.RetryAfter,
	}, nil
}

// DefaultIdleTTL 本地限流器中空闲 key 的保留时长
const DefaultIdleTTL = 10 * time.Minute

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalRateLimiter 进程内按 key 的令牌桶，单实例部署时替代 Redis
// 超过 idleTTL 未访问的 key 会被清理
type LocalRateLimiter struct {
	mu        sync.Mutex
	entries   map[string]*localEntry
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewLocalRateLimiter creates a LocalRateLimiter, idleTTL <= 0 uses DefaultIdleTTL
func NewLocalRateLimiter(idleTTL time.Duration) *LocalRateLimiter {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &LocalRateLimiter{
		entries: make(map[string]*localEntry),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Allow consumes one token from key's bucket
func (l *LocalRateLimiter) Allow(_ context.Context, key string, limit Limit) (*Result, error) {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("invalid limit: rate=%d period=%s", limit.Rate, limit.Period)
	}
	every := rate.Every(limit.Period / time.Duration(limit.Rate))
	burst := max(limit.Burst, 1)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	e, ok := l.entries[key]
	if !ok || e.limiter.Limit() != every || e.limiter.Burst() != burst {
		e = &localEntry{limiter: rate.NewLimiter(every, burst)}
		l.entries[key] = e
	}
	e.lastSeen = now

	res := &Result{}
	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		res.RetryAfter = delay
	} else {
		res.Allowed = true
	}

	tokens := max(e.limiter.TokensAt(now), 0)
	res.Remaining = int(tokens)
	res.ResetAfter = time.Duration((float64(burst) - tokens) / float64(every) * float64(time.Second))
	return res, nil
}

// sweep 清理空闲 key，调用方持有锁
func (l *LocalRateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	for key, e := range l.entries {
		if now.Sub(e.lastSeen) >= l.idleTTL {
			delete(l.entries, key)
		}
	}
	l.lastSweep = now
}
