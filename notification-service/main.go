package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"mini-shop/middleware"
	"mini-shop/notification-service/config"
	"mini-shop/notification-service/handlers"
	"mini-shop/notification-service/kafka"
	"mini-shop/notification-service/notifier"

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

	shutdownTracing, err := middleware.InitTracing("notification-service")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	n := notifier.New(logger)

	ctx, stopConsuming := context.WithCancel(context.Background())
	defer stopConsuming()

	var consumers sync.WaitGroup
	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.InitConsumer(cfg.KafkaBrokers, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
		}
		defer consumer.Close()

		orderEvents := kafka.NewOrderEventConsumer(consumer, cfg.KafkaTopic, cfg.KafkaOffset, n, logger)
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			if err := orderEvents.Run(ctx); err != nil {
				logger.Error("Order event consumer stopped", zap.Error(err))
			}
		}()
	} else {
		logger.Info("KAFKA_BROKER not set, order events will not be consumed")
	}

	notificationHandler := handlers.NewNotificationHandler(n)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("notification-service"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())
	router.POST("/notifications/send", notificationHandler.Send)
	router.GET("/notifications/:userId", notificationHandler.ListByUser)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()
	logger.Info("Notification Service started", zap.String("port", cfg.HTTPPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown signal received")

	// Partition consumers must exit before the sarama consumer is closed.
	stopConsuming()
	consumers.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Notification Service exited")
}
