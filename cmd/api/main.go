package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "requisition/api/swagger" // swagger docs
	"requisition/internal/config"
	"requisition/internal/database"
	"requisition/internal/handler"
	"requisition/internal/middleware"
	"requisition/internal/notification"
	"requisition/internal/repository"
	"requisition/internal/service"
	"requisition/internal/websocket"
	"requisition/internal/workflow"
	"requisition/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Requisition API
// @version         1.0
// @description     Approval routing and workflow transitions for vehicle, ICT and store requests.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		OutputPath: cfg.Logger.OutputPath,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	db, err := database.NewConnection(cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Database connection failed", zap.Error(err))
	}
	appLogger.Info("Connected to PostgreSQL successfully")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(appLogger.Named("ws"))
	go wsHub.Run()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	productRepo := repository.NewProductRepository(db)
	inventoryTxRepo := repository.NewInventoryTxRepository(db)
	fleetRepo := repository.NewFleetRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statisticsRepo := repository.NewStatisticsRepository(db)
	txManager := repository.NewTransactionManager(db)

	engine := workflow.NewEngine()

	// Notifications go out after commit, on the dispatcher's own workers
	channels := []notification.Channel{
		notification.NewWebsocketChannel(wsHub),
		notification.NewLogChannel(appLogger.Named("notify")),
	}
	if cfg.SMTP.Enabled() {
		channels = append(channels, notification.NewEmailChannel(notification.EmailConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}))
	}
	dispatcher := notification.NewDispatcher(
		notification.WithLogger(appLogger.Named("dispatcher")),
		notification.WithWorkers(cfg.Notification.Workers),
		notification.WithQueueSize(cfg.Notification.QueueSize),
		notification.WithRetry(cfg.Notification.MaxRetries, cfg.Notification.BaseBackoff, cfg.Notification.MaxBackoff),
		notification.WithChannels(channels...),
		notification.WithRecipients(notification.NewWorkflowRecipients(userRepo, engine.Resolver())),
	)

	// Services
	userService := service.NewUserService(userRepo, auditRepo, txManager)
	fleetService := service.NewFleetService(fleetRepo, userRepo, auditRepo, txManager, dispatcher, appLogger.Named("fleet"))
	fleetService.Subscribe(dispatcher)
	requestService := service.NewRequestService(engine, requestRepo, userRepo, productRepo, inventoryTxRepo,
		auditRepo, txManager, fleetService, dispatcher, appLogger.Named("requests"))
	inventoryService := service.NewInventoryService(productRepo, inventoryTxRepo, auditRepo, txManager)
	auditService := service.NewAuditService(auditRepo)
	statisticsService := service.NewStatisticsService(statisticsRepo)

	// Initialize Handlers
	requestHandler := handler.NewRequestHandler(requestService)
	userHandler := handler.NewUserHandler(userService)
	fleetHandler := handler.NewFleetHandler(fleetService)
	inventoryHandler := handler.NewInventoryHandler(inventoryService)
	auditHandler := handler.NewAuditHandler(auditService)
	statisticsHandler := handler.NewStatisticsHandler(statisticsService)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(appLogger.Named("http")))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "notifications": dispatcher.Stats()})
	})

	secret := []byte(cfg.JWT.Secret)

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, secret)
	})

	// API Routing
	api := router.Group("", middleware.Authenticate(secret))
	requestHandler.RegisterRoutes(api)
	userHandler.RegisterRoutes(api)
	fleetHandler.RegisterRoutes(api)
	inventoryHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)
	statisticsHandler.RegisterRoutes(api)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.Info("Server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	// drain queued notifications before the hub goes away
	if err := dispatcher.Close(ctx); err != nil {
		appLogger.Warn("Notification queue not drained", zap.Error(err))
	}
	wsHub.Stop()

	appLogger.Info("Server exited")
}
