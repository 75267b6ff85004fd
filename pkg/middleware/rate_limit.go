package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/fraud-investigator/pkg/common"
	"github.com/richxcame/fraud-investigator/pkg/logger"
	"github.com/richxcame/fraud-investigator/pkg/ratelimit"
	"go.uber.org/zap"
)

// RateLimit throttles requests per authenticated subject, or per client IP
// when the route is open. Limiter failures let the request through.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	if !limiter.Enabled() {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		identity := c.ClientIP()
		if identity == "" {
			identity = "unknown"
		}
		if userID, err := GetUserID(c); err == nil {
			identity = "user:" + userID
		}

		result, err := limiter.Allow(c.Request.Context(), identity)
		if err != nil {
			logger.WarnContext(c.Request.Context(), "rate limit evaluation failed",
				zap.String("identity", identity),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(result.Remaining, 0)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(max(int(result.ResetAfter.Round(time.Second)/time.Second), 0)))

		if result.Allowed {
			c.Next()
			return
		}

		retrySeconds := max(int(result.RetryAfter.Round(time.Second)/time.Second), 1)
		c.Header("Retry-After", strconv.Itoa(retrySeconds))

		logger.WarnContext(c.Request.Context(), "rate limit exceeded",
			zap.String("identity", identity),
			zap.Int("retry_after_seconds", retrySeconds),
		)

		common.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
		c.Abort()
	}
}
