package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	HeaderRequestID = "X-Request-ID"
	requestIDKey    = "requestID"
)

// RequestID reuses a valid incoming X-Request-ID or generates a new one
// the id is sent back in the response headers
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)

		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}

		c.Set(requestIDKey, requestID)
		c.Header(HeaderRequestID, requestID)
		c.Next()
	}
}

// AccessLog logs every request once it has been handled
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"requestID": c.GetString(requestIDKey),
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
		})

		if c.Writer.Status() >= 500 {
			entry.Error("request handled")
			return
		}

		entry.Info("request handled")
	}
}
