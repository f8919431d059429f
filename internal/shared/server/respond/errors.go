package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"callcenter-backend/internal/shared/telemetry"
)

// ErrorBody is the "error" object every failed request returns.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds the envelope for callers writing outside gin.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Code: code, Message: message}}
}

// Error logs the failure and aborts with the error envelope. Client errors
// log at warn, server errors at error.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"request_id": c.GetString("requestId"),
	}
	if route := c.FullPath(); route != "" {
		fields["route"] = route
	}
	if id := c.GetString("analysisRequestId"); id != "" {
		fields["analysis_request_id"] = id
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: message, Details: details}})
}

// BadRequest is a 400 validation_error.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "validation_error", message, nil)
}
