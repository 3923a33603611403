// internal/interfaces/http/middleware/rate_limit.go
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/your-org/storefront-backend/internal/config"
)

// RateLimit throttles clients over a fixed one-minute window in Redis.
// Guests with a cart session are keyed by that token rather than by IP, so
// shoppers behind one NAT do not exhaust a shared bucket. Webhook deliveries
// are exempt: gateways burst retries, and throttling them only delays order
// settlement.
func RateLimit(cfg *config.Config, rdb *redis.Client) gin.HandlerFunc {
	limit := cfg.Security.RateLimitPerMinute

	return func(c *gin.Context) {
		if strings.Contains(c.Request.URL.Path, "/webhooks/") {
			c.Next()
			return
		}

		key := "rate:ip:" + c.ClientIP()
		if token := c.GetHeader(cartSessionHeader); token != "" {
			key = "rate:cart:" + token
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		pipe := rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, time.Minute)
		if _, err := pipe.Exec(ctx); err != nil {
			// Redis being down must not take the whole API with it
			c.Next()
			return
		}

		count := int(incr.Val())
		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > limit {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
