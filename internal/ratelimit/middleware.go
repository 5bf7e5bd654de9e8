package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/ZanzyTHEbar/machine-health-o-meter/internal/errors"
	"github.com/gin-gonic/gin"
)

// IPRateLimitMiddleware enforces the per-IP budget on every route it wraps
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowIP(c.Request.Context(), ip)
		if err != nil {
			// a broken limiter must not take the API down
			slog.Error("Rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		rl.writeHeaders(c, "X-RateLimit", result)

		if !result.Allowed {
			rl.reject(c, result)
			return
		}

		c.Next()
	}
}

// EndpointRateLimitMiddleware applies a tighter per-minute budget to one route
func (rl *RateLimiter) EndpointRateLimitMiddleware(endpoint string, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.Allow(c.Request.Context(), "endpoint:"+endpoint+":"+ip, Rate{
			Limit:  limit,
			Period: time.Minute,
		})
		if err != nil {
			slog.Error("Endpoint rate limit check failed", "endpoint", endpoint, "ip", ip, "error", err)
			c.Next()
			return
		}

		rl.writeHeaders(c, "X-RateLimit-Endpoint", result)

		if !result.Allowed {
			rl.reject(c, result)
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) writeHeaders(c *gin.Context, prefix string, result *Result) {
	c.Header(prefix+"-Limit", strconv.Itoa(result.Limit))
	c.Header(prefix+"-Remaining", strconv.Itoa(result.Remaining))
	c.Header(prefix+"-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func (rl *RateLimiter) reject(c *gin.Context, result *Result) {
	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitIPBlock()
	}
	rl.prom.RateLimitBlock()

	retryAfter := int(result.RetryAfter.Round(time.Second).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))

	appErr := apperrors.NewRateLimitError(strconv.Itoa(retryAfter))
	appErr.RequestID = c.GetString("request_id")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, appErr.Response())
}
