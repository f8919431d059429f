package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"callcenter-backend/internal/shared/telemetry"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		sess, _ := SessionFromContext(c)
		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"user_id":     sess.AccountID,
			"session_id":  sess.SessionID,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if sess.PersonnelID != "" {
			fields["personnel_id"] = sess.PersonnelID
		}
		if callID := c.GetString("callId"); callID != "" {
			fields["call_id"] = callID
		}
		if reqID := c.GetString("analysisRequestId"); reqID != "" {
			fields["analysis_request_id"] = reqID
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		telemetry.Info("request.complete", fields)
	}
}
