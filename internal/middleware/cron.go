package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CronSecret guards scheduler control endpoints. The secret may arrive as a
// bearer token (what hosted cron services send) or in X-Cron-Secret. With no
// secret configured the endpoints are closed.
func CronSecret(secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if secret == "" {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Scheduler control is disabled"})
			return
		}

		provided := ctx.GetHeader("X-Cron-Secret")

		if provided == "" {
			if header := ctx.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
				provided = strings.TrimPrefix(header, "Bearer ")
			}
		}

		if provided == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Cron secret is required"})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid cron secret"})
			return
		}

		ctx.Next()
	}
}
