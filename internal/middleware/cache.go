package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore marks responses as private and uncacheable. Live attempt state
// and result downloads go through it.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
