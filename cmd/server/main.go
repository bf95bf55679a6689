package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/onegreenvn/campaign-monitor/docs"
	"github.com/onegreenvn/campaign-monitor/internal/config"
	"github.com/onegreenvn/campaign-monitor/internal/database"
	"github.com/onegreenvn/campaign-monitor/internal/database/repository"
	"github.com/onegreenvn/campaign-monitor/internal/router"
	"github.com/onegreenvn/campaign-monitor/internal/services"
	"github.com/onegreenvn/campaign-monitor/internal/services/campaignsync"
	"github.com/onegreenvn/campaign-monitor/internal/services/platform"
	"github.com/onegreenvn/campaign-monitor/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Configure logging
	configureLogging(cfg.LogLevel)

	if cfg.BasePath != "" {
		docs.SwaggerInfo.BasePath = cfg.BasePath + "/api/v1"
	}

	// Initialize Sentry
	if err := utils.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
		logrus.Warnf("Failed to initialize Sentry: %v", err)
	}
	defer utils.FlushSentry()

	// Control journal is optional, the engine runs without it
	var journal campaignsync.ControlJournal
	var controlLogService *services.ControlLogService
	if cfg.Database.Enabled() {
		db, err := database.InitDB(cfg.Database)
		if err != nil {
			logrus.Warnf("Control journal disabled: %v", err)
		} else {
			defer database.Close(db)
			controlLogService = services.NewControlLogService(repository.NewControlLogRepository(db), 256)
			controlLogService.Start()
			defer controlLogService.Stop()
			controlLogService.StartCleanup(cfg.ControlLogCleanupEvery, cfg.ControlLogRetentionDays)
			defer controlLogService.StopCleanup()
			journal = controlLogService
		}
	} else {
		logrus.Info("Control journal disabled (DB_* not set)")
	}

	eventHub := services.NewEventHub()
	sseHub := services.NewSSEHub()
	platformClient := platform.NewClient(cfg.Platform.BaseURL, cfg.Platform.APIToken, cfg.Platform.Timeout)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// Push transport
	switch cfg.PushTransport {
	case config.TransportWebSocket:
		source := services.NewWebSocketSource(cfg.Platform.WSURL, cfg.Platform.APIToken, eventHub.Dispatch)
		source.Start(rootCtx)
		defer source.Stop()
	default:
		rabbitMQService, err := services.NewRabbitMQService(cfg.RabbitMQ.URL())
		if err != nil {
			logrus.Fatalf("Failed to initialize RabbitMQ: %v", err)
		}
		defer rabbitMQService.Close()

		if err := rabbitMQService.StartConsumer(cfg.RabbitMQ.EventsQueue, eventHub.Dispatch); err != nil {
			logrus.Fatalf("Failed to start campaign event consumer: %v", err)
		}
	}

	manager := campaignsync.NewManager(campaignsync.Deps{
		Platform:  platformClient,
		Events:    eventHub,
		Publisher: sseHub,
		Journal:   journal,
	}, cfg.Engine)

	gin.SetMode(gin.ReleaseMode)
	r := router.SetupRouter(router.Options{
		Manager:           manager,
		SSEHub:            sseHub,
		ControlLogService: controlLogService,
		APIKey:            cfg.DashboardAPIKey,
		HeartbeatInterval: cfg.SSEHeartbeatInterval,
	})

	// Configure HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		logrus.Infof("Server starting on port %s (push transport: %s)", cfg.Port, cfg.PushTransport)
		logrus.Infof("API Health Check: http://localhost:%s/api/v1/health", cfg.Port)
		logrus.Infof("Swagger UI: http://localhost:%s/swagger/index.html", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Sessions first so no more commands are issued, then end open streams
	manager.Close()
	sseHub.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited properly")
}

func configureLogging(logLevel string) {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}
