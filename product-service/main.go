package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mini-shop/middleware"
	"mini-shop/product-service/cache"
	"mini-shop/product-service/config"
	"mini-shop/product-service/database"
	"mini-shop/product-service/handlers"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	shutdownTracing, err := middleware.InitTracing("product-service")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	db, err := database.InitDB(cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := cache.InitRedis(cfg.RedisAddr, cfg.RedisPassword, logger)
	if err != nil {
		db.Close()
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}

	productHandler := handlers.NewProductHandler(db, cache.NewProductCache(rdb, cfg.CacheTTL), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("product-service"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())
	router.GET("/products/:id", productHandler.GetProduct)
	router.PUT("/products/:id/stock", productHandler.UpdateStock)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	logger.Info("Product Service started", zap.String("port", cfg.HTTPPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// The server is drained, so nothing touches the stores any more.
	closeAll(logger, map[string]io.Closer{"database": db, "redis": rdb})
	logger.Info("Product Service exited")
}

func closeAll(logger *zap.Logger, resources map[string]io.Closer) {
	for name, r := range resources {
		if err := r.Close(); err != nil {
			logger.Error("Failed to close resource", zap.String("resource", name), zap.Error(err))
		}
	}
}
