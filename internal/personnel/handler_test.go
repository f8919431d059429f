package personnel

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"callcenter-backend/internal/shared/server/middleware"
)

func newTestRouter(svc *Service, sess middleware.Session) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		middleware.WithSession(c, sess)
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(api)
	return r
}

func TestHandlerMeAndUpdate(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	p, err := svc.Provision(context.Background(), "acct-1", "Ali Veli")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	r := newTestRouter(svc, middleware.Session{AccountID: "acct-1", PersonnelID: p.ID})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/personnel/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body, _ := json.Marshal(map[string]string{"firstName": "Ali", "lastName": "Kaya", "position": "Agent", "department": "sales"})
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/personnel/me", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got Personnel
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.LastName != "Kaya" || got.Department != DepartmentCustomerService {
		t.Fatalf("unexpected profile %+v", got)
	}
}

func TestHandlerListRequiresManager(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	r := newTestRouter(svc, middleware.Session{AccountID: "acct-1"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/personnel", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	r = newTestRouter(svc, middleware.Session{AccountID: "acct-2", Manager: true})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestHandlerMeNotFound(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	r := newTestRouter(svc, middleware.Session{AccountID: "acct-none"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/personnel/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
