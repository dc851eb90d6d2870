package api

import (
	"github.com/RishiKendai/matchcode/internal/config"
	"github.com/RishiKendai/matchcode/internal/index"
	"github.com/RishiKendai/matchcode/internal/matching"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	cfg *config.Config,
	registry *index.Registry,
	workerPool *matching.WorkerPool,
	queue IndexQueue,
	status StatusStore,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	handler := NewHandler(cfg, registry, workerPool, queue, status)

	rateLimiter := NewRateLimiter(cfg.RateLimitRPS, int(cfg.RateLimitRPS*2))

	router.Use(RequestLoggerMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(ErrorHandlerMiddleware())

	// Health endpoint (no auth)
	router.GET("/health", handler.Health)

	// API routes (with auth and rate limiting)
	api := router.Group("/api/v1")
	api.Use(JWTAuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer))
	api.Use(RateLimitMiddleware(rateLimiter))
	{
		api.POST("/match", handler.Match)
		api.POST("/index", handler.Index)
		api.GET("/index/:id/status", handler.IndexStatus)
		api.GET("/packages/:id", handler.GetPackage)
		api.DELETE("/packages/:id", handler.DeletePackage)
	}

	return router
}
