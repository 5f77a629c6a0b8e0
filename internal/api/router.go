package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/paramkeep/paramkeep/internal/middleware"
	"github.com/paramkeep/paramkeep/internal/ws"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log         *logrus.Logger
	DB          HealthChecker
	Schema      SchemaChecker
	Hub         *ws.Hub
	Audit       AuditService
	Ingest      AuditIngester
	Pruner      AuditPruner
	Catalog     CatalogService
	Sessions    *middleware.CachedSessionLookup
	CORSOrigins []string
	Version     string
	RateLimit   float64
	RateBurst   int
}

// metricsPath serves the Prometheus scrape endpoint.
const metricsPath = "/metrics"

// maxBodySize is the request body limit.
const maxBodySize = 1 << 20 // 1 MB

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(deps.RateLimit, deps.RateBurst).Handler())
	r.Use(middleware.PrometheusMiddleware(metricsPath))

	// Metrics endpoint (unauthenticated, like health).
	r.GET(metricsPath, gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.DB, deps.Schema, deps.Hub, log, deps.Version)
	audit := NewAuditHandler(deps.Audit, deps.Ingest, deps.Pruner, log)
	catalog := NewCatalogHandler(deps.Catalog, log)

	// Health and readiness are unauthenticated.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	// All other API routes require authentication.
	api.Use(middleware.AuthMiddleware(deps.Sessions, log))

	// Audit log.
	api.GET("/audit", audit.Query)
	api.DELETE("/audit", audit.Purge)
	api.GET("/audit/summary", audit.Summary)
	api.GET("/audit/stream", wsHandler(ctx, log, deps.Hub, deps.CORSOrigins, deps.Sessions))
	api.POST("/audit/events", audit.Record)
	api.GET("/audit/:id", audit.Get)

	// Environments.
	api.GET("/environments", catalog.ListEnvironments)
	api.POST("/environments", catalog.CreateEnvironment)
	api.DELETE("/environments/:name", catalog.DeleteEnvironment)

	// Projects.
	api.GET("/projects", catalog.ListProjects)
	api.POST("/projects", catalog.CreateProject)
	api.DELETE("/projects/:project", catalog.DeleteProject)

	// Parameters and values.
	api.GET("/projects/:project/parameters", catalog.ListParameters)
	api.POST("/projects/:project/parameters", catalog.CreateParameter)
	api.DELETE("/projects/:project/parameters/:name", catalog.DeleteParameter)
	api.GET("/projects/:project/parameters/:name/values", catalog.ListValues)
	api.PUT("/projects/:project/parameters/:name/values/:env", catalog.SetValue)
	api.DELETE("/projects/:project/parameters/:name/values/:env", catalog.DeleteValue)

	// Templates.
	api.GET("/projects/:project/templates", catalog.ListTemplates)
	api.POST("/projects/:project/templates", catalog.CreateTemplate)
	api.DELETE("/projects/:project/templates/:name", catalog.DeleteTemplate)

	// Users and service accounts.
	api.GET("/users", catalog.ListUsers)
	api.POST("/users", catalog.CreateUser)
	api.DELETE("/users/:name", catalog.DeleteUser)
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
