package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger returns a middleware that logs requests using logrus
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Start timer
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Process request
		c.Next()

		// Long-lived streams and probes are not worth a line
		if strings.HasSuffix(path, "/stream") || strings.HasSuffix(path, "/health") {
			return
		}

		// api_key may travel in the query string
		if raw != "" && !strings.Contains(raw, "api_key=") {
			path = path + "?" + raw
		}

		statusCode := c.Writer.Status()
		entry := logrus.WithFields(logrus.Fields{
			"status":    statusCode,
			"latency":   time.Since(start),
			"client_ip": c.ClientIP(),
			"method":    c.Request.Method,
			"path":      path,
		})

		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		case c.Request.Method != "GET":
			entry.Info("Request handled")
		default:
			entry.Debug("Request handled")
		}
	}
}
