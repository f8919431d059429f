package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"callcenter-backend/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	restore := telemetry.SetLogger(zap.New(core))
	defer restore()

	router := gin.New()
	router.Use(RequestID(), func(c *gin.Context) {
		WithSession(c, Session{AccountID: "acc-1", SessionID: "sess-1", PersonnelID: "p-1"})
		c.Next()
	}, Logging())
	router.GET("/calls/:id", func(c *gin.Context) {
		c.Set("callId", "call-1")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/calls/call-1", nil)
	req.Header.Set("X-Request-Id", "req-abc")
	router.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request.complete").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 request.complete entry, got %d", len(entries))
	}
	payload := entries[0].ContextMap()
	required := []string{"request_id", "user_id", "session_id", "personnel_id", "call_id", "duration_ms", "status", "route"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["request_id"] != "req-abc" {
		t.Fatalf("unexpected request_id: %v", payload["request_id"])
	}
	if payload["user_id"] != "acc-1" {
		t.Fatalf("unexpected user_id: %v", payload["user_id"])
	}
	if payload["route"] != "/calls/:id" {
		t.Fatalf("unexpected route: %v", payload["route"])
	}
}

func TestRequestIDReplacesInvalidHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFromContext(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "has spaces in it")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	got := resp.Body.String()
	if got == "" || got == "has spaces in it" {
		t.Fatalf("expected generated id, got %q", got)
	}
	if resp.Header().Get("X-Request-Id") != got {
		t.Fatalf("expected header to echo generated id")
	}
}

func TestRecoveryLogsPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	restore := telemetry.SetLogger(zap.New(core))
	defer restore()

	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if logs.FilterMessage("http.error").Len() != 1 {
		t.Fatalf("expected http.error log entry")
	}
}
