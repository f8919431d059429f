package middleware

import (
	"net/http"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"

	"callcenter-backend/internal/shared/metrics"
	"callcenter-backend/internal/shared/server/respond"
	"callcenter-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope. ginzap logs the panic
// with its stack; the route is counted so repeat offenders show up on the
// dashboard.
func Recovery() gin.HandlerFunc {
	return ginzap.CustomRecoveryWithZap(telemetry.Logger(), true, func(c *gin.Context, _ any) {
		metrics.IncPanic(c.FullPath())
		respond.Error(c, http.StatusInternalServerError, "internal", "unexpected server error", gin.H{
			"requestId": RequestIDFromContext(c),
		})
	})
}
