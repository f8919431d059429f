package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
)

func apiRequest(method, path string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath: path,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: method, Path: path},
		},
	}
}

func TestLazyHandlerBuildsOnce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	builds := 0
	h := &lazyHandler{build: func() (*gin.Engine, error) {
		builds++
		r := gin.New()
		r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
		return r, nil
	}}

	for i := 0; i < 2; i++ {
		resp, err := h.Handle(context.Background(), apiRequest(http.MethodGet, "/ping"))
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if resp.StatusCode != http.StatusOK || resp.Body != "pong" {
			t.Fatalf("unexpected response %d %q", resp.StatusCode, resp.Body)
		}
	}
	if builds != 1 {
		t.Fatalf("expected one build, got %d", builds)
	}
}

func TestLazyHandlerBootstrapFailure(t *testing.T) {
	boom := errors.New("no database")
	h := &lazyHandler{build: func() (*gin.Engine, error) { return nil, boom }}

	resp, err := h.Handle(context.Background(), apiRequest(http.MethodGet, "/api/v1/health"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected bootstrap error, got %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Body, `"code":"bootstrap_failed"`) {
		t.Fatalf("unexpected body %s", resp.Body)
	}
}
