package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"callcenter-backend/internal/bootstrap"
	"callcenter-backend/internal/shared/config"
	"callcenter-backend/internal/shared/server/respond"
	"callcenter-backend/internal/shared/telemetry"
)

type proxyFunc func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// lazyHandler builds the router on the first invocation and reuses it for
// the lifetime of the execution environment.
type lazyHandler struct {
	build func() (*gin.Engine, error)

	once  sync.Once
	err   error
	proxy proxyFunc
}

func (h *lazyHandler) init() {
	router, err := h.build()
	if err != nil {
		h.err = err
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": err.Error()})
		return
	}
	h.proxy = ginadapter.NewV2(router).ProxyWithContext
	telemetry.Info("lambda.bootstrap_ready", nil)
}

func (h *lazyHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	h.once.Do(h.init)
	if h.err != nil {
		return errorResponse(http.StatusInternalServerError, "bootstrap_failed", "service failed to start"), h.err
	}
	return h.proxy(ctx, req)
}

func errorResponse(status int, code, message string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.NewErrorResponse(code, message))
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func buildRouter() (*gin.Engine, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	app, err := bootstrap.Build(cfg)
	if err != nil {
		return nil, err
	}
	return app.Router, nil
}

func main() {
	defer telemetry.Sync()
	h := &lazyHandler{build: buildRouter}
	lambda.Start(h.Handle)
}
