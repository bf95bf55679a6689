package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyAuthMiddleware guards the dashboard API with a static key. The key is
// read from "Authorization: ApiKey <key>", the X-API-Key header, or the
// api_key query parameter (EventSource cannot set headers). An empty key
// leaves the API open.
func APIKeyAuthMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		provided := c.GetHeader("X-API-Key")
		if authHeader := c.GetHeader("Authorization"); provided == "" && strings.HasPrefix(authHeader, "ApiKey ") {
			provided = strings.TrimPrefix(authHeader, "ApiKey ")
		}
		if provided == "" {
			provided = c.Query("api_key")
		}

		if provided == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "API key is required",
			})
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Invalid API key",
			})
			c.Abort()
			return
		}

		c.Set("auth_type", "api_key")
		c.Next()
	}
}
