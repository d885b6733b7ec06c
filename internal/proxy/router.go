package proxy

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/personacards/backend/internal/config"
	"github.com/personacards/backend/internal/platform/logger"
)

func NewRouter(cfg config.Config, log *logger.Logger, h *Handler) *gin.Engine {
	if cfg.Env == "prod" || cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Proxy.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/health", h.Health)
	api := router.Group("/api")
	{
		api.POST("/chat", h.Chat)
		api.GET("/cards", h.Cards)
	}

	return router
}
