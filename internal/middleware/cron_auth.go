package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CronAuthMiddleware creates a Gin middleware that validates the X-API-Key
// header against the configured cron API key. It guards internal endpoints
// hit by the scheduler, such as the recurring transaction run.
func CronAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"success": false, "message": "Scheduled endpoints are not configured"})
			return
		}
		key := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"success": false, "message": "Invalid or missing API key"})
			return
		}
		c.Next()
	}
}
