package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "parserator/docs"
	"parserator/internal/handler"
	"parserator/internal/middleware"
	"parserator/internal/service"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Parse   *handler.ParseHandler
	Usage   *handler.UsageHandler
	Keys    *handler.KeyHandler
	Webhook *handler.WebhookHandler
	Results *handler.ResultHandler
	Health  *handler.HealthHandler
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	authSvc service.AuthService,
	governance service.GovernanceService,
	h Handlers,
	allowedOrigins []string,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/health", h.Health.Health)
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/v1")

	// API key routes. Only parse consumes quota.
	v1.POST("/parse", middleware.APIKeyAuth(governance), h.Parse.Parse)

	usage := v1.Group("/usage")
	usage.Use(middleware.APIKeyAuthenticate(governance))
	usage.GET("", h.Usage.Summary)
	usage.GET("/export", h.Usage.Export)

	v1.GET("/results/:requestId", middleware.APIKeyAuthenticate(governance), h.Results.Link)

	// Public auth routes
	auth := v1.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.RefreshToken)

	// Dashboard routes - require valid JWT
	dashboard := v1.Group("")
	dashboard.Use(middleware.AuthMiddleware(authSvc))

	keys := dashboard.Group("/keys")
	keys.POST("", h.Keys.Create)
	keys.GET("", h.Keys.List)
	keys.DELETE("/:id", h.Keys.Deactivate)

	webhooks := dashboard.Group("/webhooks")
	webhooks.POST("", h.Webhook.Create)
	webhooks.GET("", h.Webhook.List)
	webhooks.DELETE("/:id", h.Webhook.Delete)

	return r
}
