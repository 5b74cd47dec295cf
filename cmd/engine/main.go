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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/solroute/orderengine/api"
	"github.com/solroute/orderengine/internal/cache"
	"github.com/solroute/orderengine/internal/config"
	"github.com/solroute/orderengine/internal/database"
	"github.com/solroute/orderengine/internal/dispatch"
	"github.com/solroute/orderengine/internal/executor"
	"github.com/solroute/orderengine/internal/orders"
	"github.com/solroute/orderengine/internal/processor"
	"github.com/solroute/orderengine/internal/router"
	"github.com/solroute/orderengine/internal/venues"
	"github.com/solroute/orderengine/internal/ws"
	"github.com/solroute/orderengine/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	zapLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := database.NewPostgres(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		zapLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		zapLogger.Fatal("Failed to migrate schema", zap.Error(err))
	}
	zapLogger.Info("Database ready")

	orderCache, err := cache.New(
		cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
		cfg.Redis.OrderTTL, zapLogger,
	)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer orderCache.Close()

	repo := orders.NewRepository(db)

	routingEngine := router.New(zapLogger,
		venues.NewMockRaydium(cfg.Mock.Delay, cfg.Mock.Enabled, zapLogger),
		venues.NewMockMeteora(cfg.Mock.Delay, cfg.Mock.Enabled, zapLogger),
	)
	simulator := executor.New(cfg.Mock.Enabled, cfg.Mock.Delay, zapLogger)

	broadcaster := ws.NewBroadcaster(zapLogger)

	proc := processor.New(repo, routingEngine, simulator, broadcaster, orderCache, cfg.BuildDelay, zapLogger)

	store, err := dispatch.NewBadgerStore(cfg.Queue.Dir)
	if err != nil {
		zapLogger.Fatal("Failed to open job store", zap.Error(err))
	}
	dispatcher := dispatch.New(store, proc, dispatch.Options{
		Concurrency:   cfg.Queue.MaxConcurrent,
		MaxAttempts:   cfg.Queue.RetryMaxAttempts,
		RatePerMinute: cfg.Queue.OrdersPerMinute,
	}, zapLogger)

	ctx := context.Background()
	if err := dispatcher.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to start dispatcher", zap.Error(err))
	}

	server := api.NewServer(zapLogger, repo, dispatcher, broadcaster, orderCache)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: server.Handler(),
	}

	go func() {
		zapLogger.Info("Server started", zap.Int("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP shutdown error", zap.Error(err))
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Dispatcher shutdown error", zap.Error(err))
	}
	zapLogger.Info("Server shut down")
}
