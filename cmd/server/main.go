package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pitlane/service-booking/internal/adapter"
	"github.com/pitlane/service-booking/internal/application"
	"github.com/pitlane/service-booking/internal/config"
	bookingEvents "github.com/pitlane/service-booking/internal/events"
	"github.com/pitlane/service-booking/internal/handler"
	"github.com/pitlane/service-booking/internal/lock"
	"github.com/pitlane/service-booking/internal/platform/auth"
	"github.com/pitlane/service-booking/internal/platform/database"
	"github.com/pitlane/service-booking/internal/platform/kafka"
	"github.com/pitlane/service-booking/internal/platform/logger"
	"github.com/pitlane/service-booking/internal/platform/middleware"
	"github.com/pitlane/service-booking/internal/repository"
	"github.com/pitlane/service-booking/internal/scheduler"
	"go.uber.org/zap"
)

const serviceName = "service-booking"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	settings, err := cfg.Settings()
	if err != nil {
		zapLogger.Fatal("invalid venue configuration", zap.Error(err))
	}

	zapLogger.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.Int("capacity", settings.Capacity()),
		zap.String("time_zone", settings.Location().String()),
	)

	// Connect to database
	db, err := database.Connect(cfg.DB, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to get sql.DB", zap.Error(err))
	}
	defer sqlDB.Close()

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(repository.Models()...); err != nil {
			zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		zapLogger.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DB.DatabaseURL(), "migrations", zapLogger); err != nil {
			zapLogger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTTL)

	// Slot lock: Redis when configured so several replicas share it
	var locker lock.Locker = lock.NewKeyedMutex()
	var lockTimeout time.Duration
	if cfg.Redis.Addr != "" {
		redisClient, err := lock.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			zapLogger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		redisLocker := lock.NewRedisLocker(redisClient, "booking:", cfg.Redis.LockTTL)
		locker = redisLocker
		// Bookings give up well inside one lease even if renewal stalls.
		lockTimeout = redisLocker.TTL() * 4 / 5
		zapLogger.Info("using redis slot lock", zap.String("addr", cfg.Redis.Addr))
	}

	// Reservation events go to Kafka when brokers are configured
	var publisher application.EventPublisher = application.NoopPublisher{}
	if cfg.Kafka.Enabled() {
		kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers, zapLogger)
		defer kafkaProducer.Close()
		publisher = bookingEvents.NewReservationPublisher(kafkaProducer)
	}

	// Payment gateway (mock for development)
	var gateway adapter.PaymentGateway
	if cfg.Gateway.AccessToken != "" {
		gateway = adapter.NewMercadoPagoGateway(adapter.MercadoPagoConfig{
			BaseURL:     cfg.Gateway.BaseURL,
			AccessToken: cfg.Gateway.AccessToken,
			Currency:    cfg.Gateway.Currency,
			Timeout:     cfg.Gateway.Timeout,
			MaxRetries:  cfg.Gateway.MaxRetries,
		}, zapLogger)
	} else {
		zapLogger.Warn("MP_ACCESS_TOKEN not set, using mock payment gateway")
		gateway = adapter.NewMockGateway(zapLogger)
	}

	// Initialize repositories
	reservationRepo := repository.NewReservationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	promoRepo := repository.NewGormPromoRepository(db, zapLogger)
	txManager := repository.NewTxManager(db)

	// Initialize application services
	reservationService := application.NewReservationService(
		reservationRepo, promoRepo, txManager, locker, settings, publisher, zapLogger,
	).WithPendingTTL(cfg.Sweeper.PendingTTL).WithLockTimeout(lockTimeout)
	paymentService := application.NewPaymentService(
		paymentRepo, reservationService, gateway, txManager,
		application.CheckoutURLs{
			NotificationURL: cfg.Gateway.NotificationURL,
			ReturnURL:       cfg.Gateway.ReturnURL,
		},
		zapLogger,
	)
	promoService := application.NewPromoService(promoRepo, zapLogger)

	// Background workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	if cfg.Kafka.Enabled() {
		notificationConsumer := bookingEvents.NewPaymentNotificationConsumer(
			cfg.Kafka.Brokers,
			cfg.Kafka.GroupID,
			paymentService,
			zapLogger,
		)
		defer notificationConsumer.Close()

		go func() {
			zapLogger.Info("starting payment notification consumer")
			if err := notificationConsumer.Start(workerCtx); err != nil {
				if workerCtx.Err() == nil {
					zapLogger.Error("payment notification consumer failed", zap.Error(err))
				}
			}
		}()
	}

	sweeper := scheduler.NewSweeper(reservationService, cfg.Sweeper.Interval, zapLogger)
	go sweeper.Start(workerCtx)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.LoggerMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	handler.NewHealthHandler(serviceName, sqlDB).RegisterRoutes(router)

	// Register API routes
	apiV1 := router.Group("/api/v1")
	handler.NewReservationHandler(reservationService, paymentService).RegisterRoutes(apiV1, jwtManager)
	handler.NewPaymentHandler(paymentService, zapLogger).RegisterRoutes(apiV1)
	handler.NewPromoHandler(promoService).RegisterRoutes(apiV1)
	handler.NewAdminHandler(reservationService, paymentService, promoService).RegisterRoutes(apiV1, jwtManager)
	handler.NewSweeperHandler(reservationService, cfg.CronSecret).RegisterRoutes(apiV1)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down " + serviceName + "...")

	// Stop consumer and sweeper
	workerCancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info(serviceName + " stopped")
}
