package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/storage"
	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration
type Config struct {
	IPLimitPerMin   int           // requests per minute per client IP
	Burst           int           // bucket size, defaults to IPLimitPerMin
	CleanupInterval time.Duration // how often idle fallback limiters are dropped
	IdleTimeout     time.Duration // fallback limiters unused this long are dropped
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		IPLimitPerMin:   60,
		Burst:           60,
		CleanupInterval: 10 * time.Minute,
		IdleTimeout:     30 * time.Minute,
	}
}

// Rate is a limit over a period
type Rate struct {
	Limit  int
	Burst  int
	Period time.Duration
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	Fallback   bool
}

type fallbackEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter provides distributed rate limiting with Redis and in-memory fallback
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *storage.RedisClient
	config       Config
	metrics      *monitoring.Metrics
	prom         *monitoring.PromCollectors

	fallbackLimiters map[string]*fallbackEntry
	fallbackMutex    sync.Mutex

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewRateLimiter creates a new rate limiter. A nil or disabled redis client
// leaves only the in-memory token buckets.
func NewRateLimiter(redisClient *storage.RedisClient, config Config, metrics *monitoring.Metrics, prom *monitoring.PromCollectors) *RateLimiter {
	defaults := DefaultConfig()
	if config.IPLimitPerMin <= 0 {
		config.IPLimitPerMin = defaults.IPLimitPerMin
	}
	if config.Burst <= 0 {
		config.Burst = config.IPLimitPerMin
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}

	rl := &RateLimiter{
		redisClient:      redisClient,
		config:           config,
		metrics:          metrics,
		prom:             prom,
		fallbackLimiters: make(map[string]*fallbackEntry),
		now:              time.Now,
		stop:             make(chan struct{}),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	go rl.cleanupFallbackLimiters()

	return rl
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// Config returns the effective configuration
func (rl *RateLimiter) Config() Config {
	return rl.config
}

// AllowIP checks the per-minute budget of a client IP
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	return rl.Allow(ctx, "ip:"+ip, Rate{
		Limit:  rl.config.IPLimitPerMin,
		Burst:  rl.config.Burst,
		Period: time.Minute,
	})
}

// Allow checks key against limit, using Redis when available and falling
// back to an in-memory token bucket when Redis is missing or failing.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit Rate) (*Result, error) {
	if limit.Limit <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("invalid rate for %q: %d per %s", key, limit.Limit, limit.Period)
	}
	if limit.Burst <= 0 {
		limit.Burst = limit.Limit
	}

	if rl.redisLimiter != nil {
		result, err := rl.allowRedis(ctx, key, limit)
		if err == nil {
			return result, nil
		}
		slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
	}

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}
	return rl.allowFallback(key, limit), nil
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string, limit Rate) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, "ratelimit:"+key, redis_rate.Limit{
		Rate:   limit.Limit,
		Burst:  limit.Burst,
		Period: limit.Period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	result := &Result{
		Allowed:   res.Allowed > 0,
		Limit:     limit.Limit,
		Remaining: res.Remaining,
		ResetAt:   rl.now().Add(res.ResetAfter),
	}
	if !result.Allowed {
		result.RetryAfter = res.RetryAfter
	}
	return result, nil
}

func (rl *RateLimiter) allowFallback(key string, limit Rate) *Result {
	now := rl.now()

	rl.fallbackMutex.Lock()
	entry, exists := rl.fallbackLimiters[key]
	if !exists {
		every := limit.Period / time.Duration(limit.Limit)
		entry = &fallbackEntry{limiter: rate.NewLimiter(rate.Every(every), limit.Burst)}
		rl.fallbackLimiters[key] = entry
	}
	entry.lastSeen = now
	rl.fallbackMutex.Unlock()

	result := &Result{
		Limit:    limit.Limit,
		Fallback: true,
	}

	if entry.limiter.AllowN(now, 1) {
		result.Allowed = true
	} else {
		reservation := entry.limiter.ReserveN(now, 1)
		result.RetryAfter = reservation.DelayFrom(now)
		reservation.CancelAt(now)
	}

	tokens := entry.limiter.TokensAt(now)
	if tokens > 0 {
		result.Remaining = int(tokens)
	}
	missing := float64(limit.Burst) - tokens
	result.ResetAt = now.Add(time.Duration(missing * float64(limit.Period) / float64(limit.Limit)))

	return result
}

func (rl *RateLimiter) cleanupFallbackLimiters() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			if removed := rl.pruneIdle(); removed > 0 {
				slog.Debug("Dropped idle fallback rate limiters", "count", removed)
			}
		}
	}
}

func (rl *RateLimiter) pruneIdle() int {
	cutoff := rl.now().Add(-rl.config.IdleTimeout)

	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	removed := 0
	for key, entry := range rl.fallbackLimiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.fallbackLimiters, key)
			removed++
		}
	}
	return removed
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMutex.Unlock()

	stats := map[string]interface{}{
		"redis_enabled":     rl.redisLimiter != nil,
		"fallback_limiters": fallbackCount,
		"ip_limit_per_min":  rl.config.IPLimitPerMin,
		"burst":             rl.config.Burst,
	}

	if rl.redisLimiter != nil {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
	}

	return stats
}
