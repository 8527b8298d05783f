package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/response"
)

// RateLimiter is a per-IP fixed-window limiter backed by Redis, so every
// instance behind the load balancer shares one budget.
type RateLimiter struct {
	rdb    *redis.Client
	rate   int
	window time.Duration
}

// NewRateLimiter creates a RateLimiter (e.g., 10 requests per minute).
func NewRateLimiter(rdb *redis.Client, rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, rate: rate, window: window}
}

// Allow counts one request from ip and reports whether it is within budget.
func (rl *RateLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	key := config.CacheKey.LoginRateKey(ip)

	pipe := rl.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(rl.rate), nil
}

// Middleware returns a Gin middleware that rate-limits requests by IP.
// Requests pass when Redis is unreachable.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := rl.Allow(c.Request.Context(), c.ClientIP())
		if err == nil && !ok {
			c.Header("Retry-After", formatSeconds(rl.window))
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.Itoa(int(d.Seconds()))
}
