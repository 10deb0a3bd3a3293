package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecclesia-cloud/billing-service/pkg/logger"
)

// APIKeyHeader carries the admin key on management endpoints.
const APIKeyHeader = "X-API-Key"

// AdminAuth guards management endpoints with a shared API key.
// The comparison is constant-time.
func AdminAuth(apiKey string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			// No key configured means the management surface is off.
			log.Warn("Admin endpoint hit but no admin API key is configured")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin API disabled"})
			return
		}

		provided := c.GetHeader(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			log.Warn("Admin endpoint rejected: bad API key from %s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Next()
	}
}
