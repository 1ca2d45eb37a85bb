package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS answers preflights and echoes the origin when it is allowed. An
// allow-list of "*" admits any origin.
func CORS(origines string) gin.HandlerFunc {
	permis := make(map[string]bool)
	tous := false
	for _, o := range strings.Split(origines, ",") {
		o = strings.TrimSpace(o)
		if o == "*" {
			tous = true
		} else if o != "" {
			permis[o] = true
		}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case tous:
			c.Header("Access-Control-Allow-Origin", "*")
		case permis[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, "+RequestIDHeader)
		c.Header("Access-Control-Expose-Headers", RequestIDHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
