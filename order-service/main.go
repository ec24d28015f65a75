package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mini-shop/middleware"
	"mini-shop/order-service/circuitbreaker"
	"mini-shop/order-service/clients"
	"mini-shop/order-service/config"
	"mini-shop/order-service/database"
	"mini-shop/order-service/grpc"
	"mini-shop/order-service/handlers"
	"mini-shop/order-service/idempotency"
	"mini-shop/order-service/kafka"
	"mini-shop/order-service/ledger"
	"mini-shop/order-service/payment"
	"mini-shop/order-service/saga"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("order-service")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	health := grpc.NewHealthServer(logger)

	newBreaker := func(name string, bc config.BreakerConfig) *circuitbreaker.CircuitBreaker {
		health.Track(name)
		return circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:                     name,
			Timeout:                  bc.Timeout,
			ErrorThresholdPercentage: bc.ErrorThresholdPercentage,
			VolumeThreshold:          bc.VolumeThreshold,
			ResetTimeout:             bc.ResetTimeout,
			RollingWindow:            bc.RollingWindow,
			IsFailure:                clients.IsFailure,
			OnStateChange:            health.OnStateChange,
		})
	}
	productsBreaker := newBreaker("products", cfg.ProductsBreaker)
	cartBreaker := newBreaker("cart", cfg.CartBreaker)
	notificationsBreaker := newBreaker("notifications", cfg.NotificationsBreaker)

	transport := clients.NewTransport()
	products := clients.NewProductsClient(cfg.ProductsURL, transport, productsBreaker)
	cart := clients.NewCartClient(cfg.CartURL, transport, cartBreaker)
	notifications := clients.NewNotificationsClient(cfg.NotificationsURL, transport, notificationsBreaker)

	payments := payment.NewSimulator(payment.SimulatorConfig{
		SuccessRate: cfg.Payment.SuccessRate,
		MinLatency:  cfg.Payment.MinLatency,
		MaxLatency:  cfg.Payment.MaxLatency,
	}, logger)

	orders := ledger.New()
	var opts []saga.Option

	// Saga journal
	if cfg.Database.Enabled() {
		db, err := database.InitDB(cfg.Database.DSN(), logger)
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer db.Close()
		opts = append(opts, saga.WithJournal(database.NewSagaJournal(db)))
	} else {
		logger.Info("DB_HOST not set, saga journal disabled")
	}

	// Initialize Kafka producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.InitProducer(cfg.KafkaBrokers, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
		}
		publisher := kafka.NewEventPublisher(producer, cfg.KafkaTopic, logger)
		defer publisher.Close()
		opts = append(opts, saga.WithEventPublisher(publisher))
	} else {
		logger.Info("KAFKA_BROKER not set, order events disabled")
	}

	// Idempotency keys
	var keys handlers.IdempotencyStore
	if cfg.RedisAddr != "" {
		rdb, err := idempotency.InitRedis(cfg.RedisAddr, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		defer rdb.Close()
		keys = idempotency.NewStore(rdb, cfg.IdempotencyTTL)
	} else {
		logger.Info("REDIS_ADDR not set, Idempotency-Key header ignored")
	}

	orchestrator := saga.NewOrchestrator(cart, products, notifications, payments, orders, logger, opts...)

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware("order-service"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.NewHealthHandler(productsBreaker, cartBreaker, notificationsBreaker).HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	orderHandler := handlers.NewOrderHandler(orchestrator, orders, keys, logger)
	orderRoutes := router.Group("/orders", middleware.AuthRequired(cfg.JWTSecret))
	orderRoutes.POST("", orderHandler.PlaceOrder)
	orderRoutes.GET("", orderHandler.ListOrders)
	orderRoutes.GET("/stats", orderHandler.Stats)
	orderRoutes.GET("/:id", orderHandler.GetOrder)
	orderRoutes.PATCH("/:id/status", orderHandler.UpdateStatus)

	// Start REST server
	restSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		if err := restSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Order Service REST API started", zap.String("port", cfg.HTTPPort))

	// Start gRPC health server
	grpcListener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Fatal("Failed to listen on gRPC port", zap.Error(err))
	}

	grpcServer := grpc.NewServer(health)

	go func() {
		if err := grpcServer.Serve(grpcListener); err != nil {
			logger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	logger.Info("Order Service gRPC health server started", zap.String("port", cfg.GRPCPort))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down servers...")
	health.Shutdown()

	// Shutdown REST server
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := restSrv.Shutdown(ctx); err != nil {
		logger.Error("REST server forced to shutdown", zap.Error(err))
	}

	// Shutdown gRPC server
	grpcServer.GracefulStop()

	logger.Info("Servers exited")
}
