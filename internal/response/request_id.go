package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderRequestID carries the correlation id in both directions.
const HeaderRequestID = "X-Request-ID"

// ContextKeyRequestID is the Gin context key for the request ID.
const ContextKeyRequestID = "request_id"

// RequestIDMiddleware tags every request with a UUID. An id forwarded by
// the proxy is kept only when it parses as a UUID, so arbitrary header
// text never reaches logs or the response envelope.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := normalizeRequestID(c.GetHeader(HeaderRequestID))
		c.Set(ContextKeyRequestID, reqID)
		c.Header(HeaderRequestID, reqID)
		c.Next()
	}
}

// RequestID returns the id assigned by RequestIDMiddleware, or "" when the
// middleware did not run.
func RequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

func normalizeRequestID(incoming string) string {
	if id, err := uuid.Parse(incoming); err == nil && id != uuid.Nil {
		return id.String()
	}
	return uuid.NewString()
}
