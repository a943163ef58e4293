package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/craftshop/backend/internal/infrastructure/config"
	"github.com/craftshop/backend/internal/infrastructure/logger"
	"github.com/craftshop/backend/internal/interfaces/http/handler"
	"github.com/craftshop/backend/internal/interfaces/http/middleware"
)

// Dependencies carries the handlers mounted by the router.
type Dependencies struct {
	Integration *handler.IntegrationHandler
}

// New builds the gin engine with the shared middleware stack and all routes.
func New(cfg *config.Config, log *zap.Logger, deps Dependencies) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		_ = engine.SetTrustedProxies(cfg.HTTP.TrustedProxies)
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
	}))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api/v1")
	deps.Integration.RegisterRoutes(api)

	return engine
}
