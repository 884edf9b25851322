package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window limiter keyed by tenant (or client IP) in Redis.
type RateLimiter struct {
	limit  int64
	window time.Duration
}

func NewRateLimiter(limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{limit: limit, window: window}
}

// RateLimitMiddleware passes through while Redis is unavailable.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	client := config.GetRedisDB()
	if client == nil {
		c.Next()
		return
	}
	key := "ratelimit:" + c.ClientIP()
	if tenantId := c.GetHeader("x-tenant-id"); tenantId != "" {
		key = "ratelimit:" + tenantId
	}

	ctx := c.Request.Context()
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if count == 1 {
		if err := client.Expire(ctx, key, rl.window).Err(); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}
