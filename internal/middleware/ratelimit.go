package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/estatevest/platform/internal/cache"
	"github.com/estatevest/platform/pkg/errors"
	"github.com/estatevest/platform/pkg/logger"
	"github.com/estatevest/platform/pkg/metrics"
	"github.com/estatevest/platform/pkg/response"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimit limits requests per (identity, route) within a fixed window using the shared cache store.
// Authenticated requests are keyed by user id, anonymous ones by client IP. Store failures let the request through.
func RateLimit(store cache.Store, maxRequests int, window time.Duration) gin.HandlerFunc {
	log := logger.WithModule("ratelimit")

	return func(c *gin.Context) {
		if store == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		count, ttl, err := store.IncrementWithTTL(c.Request.Context(), rateLimitKey(c), window)
		if err != nil {
			log.Warn("rate limit store unavailable", zap.Error(err))
			c.Next()
			return
		}

		remaining := maxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(ttl.Round(time.Second).Seconds())))

		if int(count) > maxRequests {
			metrics.RateLimited.Inc()
			c.Header("Retry-After", strconv.Itoa(int(ttl.Round(time.Second).Seconds())))
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}

func rateLimitKey(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	identity := "ip:" + c.ClientIP()
	if userID := c.GetString(CtxUserIDKey); userID != "" {
		identity = "user:" + userID
	}
	return rateLimitKeyPrefix + identity + "|" + path
}
