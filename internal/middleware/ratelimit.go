package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/flowra-dev/flowra/internal/logging"
	"github.com/flowra-dev/flowra/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit applies a fixed-window limit per client IP under the given scope.
// A limit of zero or less disables it. Limiter failures let the request
// through rather than locking users out.
func RateLimit(rl ratelimit.Limiter, scope string, limit int, window time.Duration) gin.HandlerFunc {
	if rl == nil || limit <= 0 {
		return func(ctx *gin.Context) {
			ctx.Next()
		}
	}

	return func(ctx *gin.Context) {
		key := scope + ":" + ctx.ClientIP()

		result, err := rl.Allow(ctx.Request.Context(), key, limit, window)
		if err != nil {
			logging.L().Warn("rate limit check failed", zap.String("scope", scope), zap.Error(err))
			ctx.Next()
			return
		}

		remaining := limit - result.Count
		if remaining < 0 {
			remaining = 0
		}

		ctx.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		ctx.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		ctx.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfter := int(time.Until(result.ResetAt).Seconds()) + 1
			ctx.Header("Retry-After", strconv.Itoa(retryAfter))
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}

		ctx.Next()
	}
}
