package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func corsRouter(origins ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(origins))
	r.POST("/api/v1/recordings", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/api/v1/calls", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	return r
}

func corsRequest(r http.Handler, method, path, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Origin", origin)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSPreflightAndSimpleRequest(t *testing.T) {
	r := corsRouter("http://localhost:5173")

	pre := corsRequest(r, http.MethodOptions, "/api/v1/recordings", "http://localhost:5173")
	if pre.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", pre.Code)
	}
	if got := pre.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Fatalf("expected Max-Age 600, got %q", got)
	}
	if got := pre.Header().Get("Access-Control-Allow-Headers"); got != corsAllowHeaders {
		t.Fatalf("unexpected Allow-Headers %q", got)
	}

	post := corsRequest(r, http.MethodPost, "/api/v1/recordings", "http://localhost:5173")
	if post.Code != http.StatusOK {
		t.Fatalf("post: expected 200, got %d", post.Code)
	}
	if got := post.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected origin echoed, got %q", got)
	}
	if got := post.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials allowed, got %q", got)
	}
}

func TestCORSOriginMatching(t *testing.T) {
	r := corsRouter("https://app.callcenter.test/", "https://*.preview.callcenter.test")
	cases := []struct {
		origin string
		allow  bool
	}{
		{"https://app.callcenter.test", true},
		{"https://pr-42.preview.callcenter.test", true},
		{"https://preview.callcenter.test", false},
		{"http://pr-42.preview.callcenter.test", false},
		{"https://evil.test/.preview.callcenter.test", false},
		{"https://evil.test", false},
	}
	for _, tc := range cases {
		w := corsRequest(r, http.MethodGet, "/api/v1/calls", tc.origin)
		got := w.Header().Get("Access-Control-Allow-Origin")
		if tc.allow && got != tc.origin {
			t.Fatalf("%s: expected allowed, got %q", tc.origin, got)
		}
		if !tc.allow && got != "" {
			t.Fatalf("%s: expected no Allow-Origin, got %q", tc.origin, got)
		}
		if w.Code != http.StatusOK {
			t.Fatalf("%s: request should still be served, got %d", tc.origin, w.Code)
		}
	}
}
