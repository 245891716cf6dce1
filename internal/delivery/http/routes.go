package http

import (
	"github.com/gin-gonic/gin"
	"github.com/shopagent/backend/config"
	"github.com/shopagent/backend/internal/usecase"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, auth *usecase.AuthService) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", handler.Register)
			authRoutes.POST("/login", handler.Login)
			authRoutes.POST("/refresh", handler.Refresh)
		}

		protected := v1.Group("")
		protected.Use(AuthMiddleware(auth))
		protected.Use(RateLimitMiddleware(cfg.RateLimit.SearchPerMinute, cfg.RateLimit.Burst))
		{
			protected.GET("/search", handler.Search)
		}
	}

	return router
}
