package router

import (
	"time"

	"github.com/onegreenvn/campaign-monitor/internal/handlers"
	"github.com/onegreenvn/campaign-monitor/internal/middleware"
	"github.com/onegreenvn/campaign-monitor/internal/services"
	"github.com/onegreenvn/campaign-monitor/internal/services/campaignsync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Options carries the shared services the routes are built from
type Options struct {
	Manager           *campaignsync.Manager
	SSEHub            *services.SSEHub
	ControlLogService *services.ControlLogService // nil when the journal is disabled
	APIKey            string
	HeartbeatInterval time.Duration
}

// SetupRouter configures the Gin router with the campaign monitoring routes
func SetupRouter(opts Options) *gin.Engine {
	// Create a new router
	r := gin.New()

	// Use middleware
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	// Configure CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	campaignHandler := handlers.NewCampaignHandler(opts.Manager, opts.SSEHub, opts.HeartbeatInterval)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	logrus.Info("Swagger UI endpoint registered at /swagger/index.html")

	// API v1 routes
	api := r.Group("/api/v1")
	{
		// Health check
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":   "ok",
				"time":     time.Now().Format(time.RFC3339),
				"sessions": len(opts.Manager.Sessions()),
			})
		})

		protected := api.Group("")
		protected.Use(middleware.APIKeyAuthMiddleware(opts.APIKey))
		{
			protected.GET("/sessions", campaignHandler.ListSessions)

			campaigns := protected.Group("/campaigns/:id")
			{
				campaigns.GET("/stream", campaignHandler.StreamState)
				campaigns.GET("/state", campaignHandler.GetState)
				campaigns.POST("/control", campaignHandler.Control)
				campaigns.POST("/refresh", campaignHandler.Refresh)

				if opts.ControlLogService != nil {
					controlLogHandler := handlers.NewControlLogHandler(opts.ControlLogService)
					campaigns.GET("/control-logs", controlLogHandler.GetLogsByCampaign)
				}
			}
		}
	}

	return r
}
