package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/machine-health-o-meter/internal/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newFallbackLimiter(t *testing.T, config Config) *RateLimiter {
	t.Helper()
	limiter := NewRateLimiter(nil, config, monitoring.NewMetrics(), nil)
	t.Cleanup(limiter.Close)

	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }
	return limiter
}

func newRedisLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := storage.NewRedisClientFrom(redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr.Addr())
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRateLimiter(client, Config{IPLimitPerMin: 3}, monitoring.NewMetrics(), nil)
	t.Cleanup(limiter.Close)
	return limiter, mr
}

func TestRateLimiterFallbackMode(t *testing.T) {
	limiter := newFallbackLimiter(t, DefaultConfig())
	ctx := context.Background()
	rateLimit := Rate{Limit: 5, Period: time.Minute}

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, "test:ip", rateLimit)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.True(t, result.Fallback)
		assert.Equal(t, 5, result.Limit)
		assert.Equal(t, 4-i, result.Remaining)
	}

	result, err := limiter.Allow(ctx, "test:ip", rateLimit)
	require.NoError(t, err)
	assert.False(t, result.Allowed, "6th request should be blocked")
	assert.InDelta(t, float64(12*time.Second), float64(result.RetryAfter), float64(time.Millisecond))
	assert.Zero(t, result.Remaining)
}

func TestRateLimiterBurst(t *testing.T) {
	limiter := newFallbackLimiter(t, DefaultConfig())
	ctx := context.Background()
	rateLimit := Rate{Limit: 5, Burst: 10, Period: time.Second}

	allowed := 0
	for i := 0; i < 15; i++ {
		result, err := limiter.Allow(ctx, "test:burst", rateLimit)
		require.NoError(t, err)
		if result.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 10, allowed)
}

func TestRateLimiterMultipleKeys(t *testing.T) {
	limiter := newFallbackLimiter(t, DefaultConfig())
	ctx := context.Background()
	rateLimit := Rate{Limit: 3, Period: time.Minute}

	for _, key := range []string{"ip:1", "ip:2", "ip:3"} {
		for i := 0; i < 3; i++ {
			result, err := limiter.Allow(ctx, key, rateLimit)
			require.NoError(t, err)
			assert.True(t, result.Allowed, "key %s request %d should be allowed", key, i+1)
		}

		result, err := limiter.Allow(ctx, key, rateLimit)
		require.NoError(t, err)
		assert.False(t, result.Allowed, "key %s 4th request should be blocked", key)
	}
}

func TestRateLimiterInvalidRate(t *testing.T) {
	limiter := newFallbackLimiter(t, DefaultConfig())

	_, err := limiter.Allow(context.Background(), "k", Rate{Limit: 0, Period: time.Minute})
	assert.Error(t, err)
	_, err = limiter.Allow(context.Background(), "k", Rate{Limit: 1})
	assert.Error(t, err)
}

func TestRateLimiterDefaults(t *testing.T) {
	limiter := newFallbackLimiter(t, Config{IPLimitPerMin: 30})

	cfg := limiter.Config()
	assert.Equal(t, 30, cfg.IPLimitPerMin)
	assert.Equal(t, 30, cfg.Burst)
	assert.Equal(t, DefaultConfig().CleanupInterval, cfg.CleanupInterval)

	stats := limiter.GetStats()
	assert.False(t, stats["redis_enabled"].(bool))
	assert.Equal(t, 30, stats["ip_limit_per_min"])
}

func TestRateLimiterPruneIdle(t *testing.T) {
	limiter := newFallbackLimiter(t, DefaultConfig())
	ctx := context.Background()
	start := limiter.now()

	for i := 0; i < 10; i++ {
		_, err := limiter.AllowIP(ctx, fmt.Sprintf("10.0.0.%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 10, limiter.GetStats()["fallback_limiters"])

	limiter.now = func() time.Time { return start.Add(time.Hour) }
	_, err := limiter.AllowIP(ctx, "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, 9, limiter.pruneIdle())
	assert.Equal(t, 1, limiter.GetStats()["fallback_limiters"])
}

func TestRateLimiterConcurrency(t *testing.T) {
	limiter := NewRateLimiter(nil, DefaultConfig(), nil, nil)
	defer limiter.Close()

	ctx := context.Background()
	rateLimit := Rate{Limit: 100, Period: time.Second}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := limiter.Allow(ctx, "test:concurrent", rateLimit)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}

func TestRateLimiterRedis(t *testing.T) {
	limiter, mr := newRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.AllowIP(ctx, "192.0.2.1")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.False(t, result.Fallback)
	}

	result, err := limiter.AllowIP(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Greater(t, result.RetryAfter, time.Duration(0))

	assert.True(t, mr.Exists("rate:ratelimit:ip:192.0.2.1"))
	assert.True(t, limiter.GetStats()["redis_enabled"].(bool))
}

func TestRateLimiterRedisFailureFallsBack(t *testing.T) {
	limiter, mr := newRedisLimiter(t)
	mr.Close()

	result, err := limiter.AllowIP(context.Background(), "192.0.2.2")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.True(t, result.Fallback)
}

func TestIPRateLimitMiddleware(t *testing.T) {
	metrics := monitoring.NewMetrics()
	limiter := NewRateLimiter(nil, Config{IPLimitPerMin: 2}, metrics, monitoring.NewPromCollectors())
	defer limiter.Close()

	router := gin.New()
	router.Use(limiter.IPRateLimitMiddleware())
	router.GET("/machines", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		router.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/machines", nil))
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "2", last.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), "Rate limit exceeded")
	assert.Contains(t, last.Body.String(), `"category":"rate_limit"`)
	assert.Equal(t, int64(1), metrics.GetStats()["rate_limit_ip_blocks"])
}

func TestEndpointRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter(nil, DefaultConfig(), nil, nil)
	defer limiter.Close()

	router := gin.New()
	router.POST("/machine", limiter.EndpointRateLimitMiddleware("record", 1), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/machine", nil))
	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/machine", nil))

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Endpoint-Limit"))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestHandleRateLimitStatus(t *testing.T) {
	limiter := NewRateLimiter(nil, Config{IPLimitPerMin: 42}, nil, nil)
	defer limiter.Close()

	router := gin.New()
	router.GET("/ratelimit/status", limiter.HandleRateLimitStatus())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ratelimit/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"limit":42`)
}
