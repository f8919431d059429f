package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"callcenter-backend/internal/services/health"
	"callcenter-backend/internal/shared/config"
	"callcenter-backend/internal/shared/metrics"
	"callcenter-backend/internal/shared/server/middleware"
	"callcenter-backend/internal/shared/server/respond"
)

const ingestTokenHeader = "X-Ingest-Token"

// RouteRegistrar is implemented by every feature handler.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// InternalRegistrar is implemented by handlers that expose service-token routes.
type InternalRegistrar interface {
	RegisterInternalRoutes(rg *gin.RouterGroup)
}

// CallsRoutes is the calls handler: session routes plus the ingest route.
type CallsRoutes interface {
	RouteRegistrar
	InternalRegistrar
}

// RouterDeps lists the handlers mounted by NewRouter. Nil handlers are skipped.
type RouterDeps struct {
	Config      config.Config
	Sessions    middleware.SessionVerifier
	Health      *health.Service
	RateLimiter *middleware.RateLimiter

	AuthHandler       RouteRegistrar
	GoogleAuth        RouteRegistrar
	CallsHandler      CallsRoutes
	PersonnelHandler  RouteRegistrar
	RecordingsHandler RouteRegistrar
	IngestHandler     RouteRegistrar
}

// Rate limit groups. Polling by request id runs every few seconds per
// client, so it gets a larger bucket than ordinary traffic.
var rateLimitRules = map[string]middleware.RateLimitRule{
	"DEFAULT": {Rate: 10, Burst: 40},
	"POLLING": {Rate: 2, Burst: 40},
	"AUTH":    {Rate: 0.5, Burst: 10},
	"UPLOAD":  {Rate: 0.2, Burst: 5},
}

var rateLimitRoutes = map[string]string{
	"GET /api/v1/calls/by-request/:requestId": "POLLING",
	"POST /api/v1/auth/signin":                "AUTH",
	"POST /api/v1/auth/signup":                "AUTH",
	"POST /api/v1/recordings":                 "UPLOAD",
	"POST /api/v1/recordings/presign":         "UPLOAD",
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		metrics.HTTP(),
		middleware.Auth(deps.Sessions),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    rateLimitRules,
			GroupFor: middleware.GroupByRoute(rateLimitRoutes),
			Limiter:  deps.RateLimiter,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		st := deps.Health.Check(c.Request.Context())
		status := http.StatusOK
		if !st.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, st)
	})

	register(api, deps.AuthHandler)
	register(api, deps.GoogleAuth)

	authed := api.Group("")
	authed.Use(middleware.RequireSession())
	if deps.CallsHandler != nil {
		deps.CallsHandler.RegisterRoutes(authed)
	}
	register(authed, deps.PersonnelHandler)
	register(authed, deps.RecordingsHandler)

	internal := api.Group("/internal")
	internal.Use(middleware.ServiceToken(ingestTokenHeader, deps.Config.IngestToken))
	if deps.CallsHandler != nil {
		deps.CallsHandler.RegisterInternalRoutes(internal)
	}
	register(internal, deps.IngestHandler)

	return r
}

func register(rg *gin.RouterGroup, h RouteRegistrar) {
	if h == nil {
		return
	}
	h.RegisterRoutes(rg)
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
