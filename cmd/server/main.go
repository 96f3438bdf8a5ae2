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

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yourorg/backtest-service/internal/cache"
	"github.com/yourorg/backtest-service/internal/client"
	"github.com/yourorg/backtest-service/internal/config"
	"github.com/yourorg/backtest-service/internal/event"
	"github.com/yourorg/backtest-service/internal/handler"
	"github.com/yourorg/backtest-service/internal/middleware"
	"github.com/yourorg/backtest-service/internal/repository"
	"github.com/yourorg/backtest-service/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logger
	logger, err := createLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := handler.RegisterValidators(); err != nil {
		logger.Fatal("Failed to register validators", zap.Error(err))
	}

	// Connect to database
	db, err := connectToDB(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	barRepo := repository.NewBarRepository(db, logger)
	backtestRepo := repository.NewBacktestRepository(db, logger)

	// Bars come from the local database or the historical data service,
	// depending on configuration.
	var barSource service.BarSource = barRepo
	if cfg.MarketData.Source == "http" {
		barSource = client.NewMarketDataClient(
			cfg.MarketData.URL,
			cfg.ServiceKey,
			cfg.MarketData.Timeout,
			cfg.MarketData.MaxRetries,
			logger,
		)
	}

	var producer *event.Producer
	if cfg.Kafka.Enabled {
		producer = event.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, "backtest-service", logger)
	}

	var resultCache *cache.ResultCache
	if cfg.Redis.Enabled {
		resultCache = cache.NewResultCache(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.TTL,
			logger,
		)
	}

	// Initialize services
	backtestService := service.NewBacktestService(
		barSource,
		backtestRepo,
		producer,
		resultCache,
		cfg.Backtest,
		logger,
	)
	defer backtestService.Close()

	// Initialize handlers
	backtestHandler := handler.NewBacktestHandler(backtestService, logger)
	catalogHandler := handler.NewCatalogHandler(backtestService, logger)
	marketDataHandler := handler.NewMarketDataHandler(barRepo, logger)

	// Set up HTTP server with Gin
	router := setupRouter(
		backtestHandler,
		catalogHandler,
		marketDataHandler,
		logger,
		cfg,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func createLogger(level string) (*zap.Logger, error) {
	// Parse log level
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Create logger config
	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

func connectToDB(dbConfig config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.DBName,
		dbConfig.SSLMode,
	)

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(dbConfig.MaxOpenConns)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	return db, nil
}

func setupRouter(
	backtestHandler *handler.BacktestHandler,
	catalogHandler *handler.CatalogHandler,
	marketDataHandler *handler.MarketDataHandler,
	logger *zap.Logger,
	cfg *config.Config,
) *gin.Engine {
	router := gin.New()

	// Use middlewares
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Catalog routes
		v1.GET("/indicators", catalogHandler.ListIndicators)
		v1.GET("/strategies", catalogHandler.ListStrategies)

		// Backtest routes
		backtests := v1.Group("/backtests")
		{
			if cfg.Auth.Enabled {
				backtests.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret, logger))
			}

			backtests.POST("", backtestHandler.RunBacktest)
			backtests.GET("", backtestHandler.ListBacktests)
			backtests.GET("/:id", backtestHandler.GetBacktest)
			backtests.DELETE("/:id", backtestHandler.DeleteBacktest)
		}

		// Service-to-service market data routes
		marketData := v1.Group("/service/market-data")
		{
			marketData.Use(middleware.ServiceAuthMiddleware(cfg.ServiceKey, logger))

			marketData.GET("/candles", marketDataHandler.GetCandles)
			marketData.GET("/range/:symbol", marketDataHandler.GetDataRange)
			marketData.POST("/bars", marketDataHandler.ImportBars)
		}
	}

	return router
}
