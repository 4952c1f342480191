package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wifiticket/guestpass/internal/config"
	"wifiticket/guestpass/internal/handler/middleware"
)

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	ticketHandler *TicketHandler,
	historyHandler *HistoryHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.SetHTMLTemplate(pageTemplates)

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Wi-Fi Credential Generator API is running"})
	}
	r.GET("/health", health)
	r.GET("/healthz", health)

	// Browser auto-print page
	r.GET("/print/latest", ticketHandler.PrintLatestPage)

	api := r.Group("/api")
	{
		api.GET("/generate", ticketHandler.Generate)
		api.POST("/generate", ticketHandler.Generate)
		api.GET("/generate/print", ticketHandler.GeneratePrint)

		api.POST("/print/latest", ticketHandler.PrintLatest)

		api.GET("/history/capacity", historyHandler.Capacity)
	}

	return r
}
