package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-service/internal/cache"
	"stock-service/internal/config"
	"stock-service/internal/database"
	"stock-service/internal/events"
	"stock-service/internal/fulfillment"
	"stock-service/internal/handlers"
	"stock-service/internal/ledger"
	"stock-service/internal/monitor"
	"stock-service/internal/orchestrator"
	"stock-service/internal/store"
	"stock-service/internal/warehouse"
	"stock-service/pkg/logger"
	"stock-service/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	appLogger := logger.New(cfg.Environment)
	defer appLogger.Sync()

	appLogger.Info("🚀 Starting Stock Service",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
	)

	appLogger.Info("📡 Kafka Configuration",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic_stock", cfg.KafkaTopicStock),
		zap.String("topic_orders", cfg.KafkaTopicOrders),
		zap.String("topic_alerts", cfg.KafkaTopicAlerts),
		zap.String("client_id", cfg.KafkaClientID),
		zap.String("acks", cfg.KafkaAcks),
		zap.Int("retries", cfg.KafkaRetries),
	)

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize SQLite database (single writer)
	appLogger.Info("🔧 Initializing database...", zap.String("path", cfg.SQLitePath))
	db, err := database.NewSingleWriterDB(cfg.SQLitePath, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("✅ Database initialized successfully")

	// Initialize Kafka event publisher with in-memory fallback
	eventBus, err := events.NewKafkaEventPublisher(cfg, appLogger)
	if err != nil {
		appLogger.Warn("Failed to initialize Kafka publisher, using in-memory fallback", zap.Error(err))
		eventBus = events.NewEventPublisher()
	}

	// Initialize cache (Redis or in-memory fallback)
	statusCache := cache.NewCache(cfg, appLogger)

	// Wire the stock engine
	moveLedger := ledger.New(db)
	stockStore := store.New(db, moveLedger, eventBus, appLogger)
	resolver := warehouse.NewResolver(db, cfg.DefaultWarehouseCode, cfg.DefaultWarehouseName, appLogger)
	emitter := fulfillment.NewTaskEmitter(db, eventBus, appLogger)
	orch := orchestrator.New(stockStore, resolver, emitter, eventBus, appLogger)

	// Provision the default warehouse up front so the first request does
	// not pay for it.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 5*time.Second)
	if _, err := resolver.EnsureDefault(startupCtx); err != nil {
		appLogger.Fatal("Failed to ensure default warehouse", zap.Error(err))
	}
	cancelStartup()
	appLogger.Info("✅ Default warehouse ready", zap.String("code", cfg.DefaultWarehouseCode))

	// Low-stock monitor runs for the lifetime of the process
	lowStockMonitor := monitor.New(stockStore, eventBus, cfg.LowStockInterval, cfg.LowStockThreshold, appLogger)
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	go lowStockMonitor.Run(monitorCtx)

	// Initialize router
	router := gin.New()

	// CORS middleware (must be first to handle preflight requests)
	router.Use(middleware.CORSMiddleware())

	router.Use(middleware.RecoveryHandler(appLogger))
	router.Use(logger.GinMiddleware(appLogger))

	// Request ID middleware (must be early in the chain)
	router.Use(middleware.RequestIDMiddleware(appLogger))

	// Error handler middleware
	router.Use(middleware.ErrorHandler(appLogger))

	// Initialize handlers
	appLogger.Info("🔧 Initializing handlers...")
	stockHandler := handlers.NewStockHandler(appLogger, stockStore, resolver, statusCache, cfg.CacheTTL)
	warehouseHandler := handlers.NewWarehouseHandler(appLogger, db, resolver)
	cartHandler := handlers.NewCartHandler(appLogger, orch, emitter)
	appLogger.Info("✅ Handlers initialized successfully")

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck(db))

		stock := v1.Group("/stock")
		{
			stock.POST("/receive", stockHandler.Receive)
			stock.POST("/adjust", stockHandler.Adjust)
			stock.POST("/reserve", stockHandler.Reserve)
			stock.POST("/release", stockHandler.Release)
			stock.POST("/commit", stockHandler.Commit)
			stock.POST("/transfer", stockHandler.Transfer)
			stock.GET("/status", stockHandler.Status)
			stock.PUT("/threshold", stockHandler.SetThreshold)
			stock.GET("/moves", stockHandler.Moves)
			stock.GET("/low", stockHandler.LowStock)
		}

		warehouses := v1.Group("/warehouses")
		{
			warehouses.GET("", warehouseHandler.List)
			warehouses.POST("", warehouseHandler.Ensure)
			warehouses.GET("/default", warehouseHandler.Default)
		}

		carts := v1.Group("/carts")
		{
			carts.POST("/:id/items", cartHandler.AddItem)
			carts.PATCH("/:id/items/:unitKey", cartHandler.ChangeQuantity)
			carts.DELETE("/:id/items/:unitKey", cartHandler.RemoveItem)
			carts.DELETE("/:id", cartHandler.Clear)
			carts.POST("/:id/checkout", cartHandler.Checkout)
		}

		v1.GET("/orders/:id/tasks", cartHandler.OrderTasks)
		v1.POST("/tasks/:id/status", cartHandler.AdvanceTask)
	}

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("Starting stock service",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	stopMonitor()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	appLogger.Info("Server exited")
}

func healthCheck(db *database.SingleWriterDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "degraded",
				"service": "stock-service",
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "stock-service",
		})
	}
}
