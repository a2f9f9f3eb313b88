package app

import (
	"lingua_voice_backend/docs"
	"lingua_voice_backend/internal/config"
	"lingua_voice_backend/internal/middleware"
	"lingua_voice_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.Check)

	public := router.Group("/api")
	{
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)
	}

	// the voice socket authenticates via ?token= since browsers cannot set
	// headers on websocket upgrades
	router.GET("/ws/voice", middleware.AuthMiddleware(cfg), c.session.ServeWS)

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg))
	{
		sessions := api.Group("/sessions")
		{
			sessions.POST("", c.session.Open)
			sessions.GET("", c.session.List)
			sessions.GET("/:id", c.session.Get)
			sessions.POST("/:id/close", c.session.Close)
			sessions.GET("/:id/summary", c.session.GetSummary)
			sessions.GET("/:id/turns", c.session.GetTurns)
		}

		progress := api.Group("/progress")
		{
			progress.GET("/xp", c.progress.GetXP)
			progress.GET("/streak", c.progress.GetStreak)
			progress.GET("/mastery", c.progress.GetMastery)
			progress.GET("/badges", c.progress.GetBadges)
			progress.GET("/ledger", c.progress.GetLedger)
		}
	}
}
