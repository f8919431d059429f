package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"callcenter-backend/internal/shared/server/respond"
)

// ServiceToken guards machine-to-machine routes with a shared header token.
// An empty expected token disables the route group entirely.
func ServiceToken(header, expected string) gin.HandlerFunc {
	expected = strings.TrimSpace(expected)
	return func(c *gin.Context) {
		if expected == "" {
			respond.Error(c, http.StatusServiceUnavailable, "not_configured", "service token not configured", nil)
			return
		}
		got := strings.TrimSpace(c.GetHeader(header))
		if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "invalid service token", nil)
			return
		}
		c.Next()
	}
}
