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

	"booking-scheduler/config"
	"booking-scheduler/internal/api"
	"booking-scheduler/internal/broker"
	"booking-scheduler/internal/redisclient"
	"booking-scheduler/internal/service"
	"booking-scheduler/internal/store"
	"booking-scheduler/internal/util"
	"booking-scheduler/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting booking scheduler")

	tp, err := util.InitTracer("booking-scheduler", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(migrateCtx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicBookingEvents)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicBookingEvents))

	eventPublisher := broker.NewEventPublisher(producer)

	reminders := service.NewReminderScheduler(db, cfg.Scheduling.ReminderLeadMinutes)
	bookingService := service.NewBookingService(db, db, reminders, eventPublisher, redisClient, service.BookingRules{
		CancellationFeePercent:   cfg.Scheduling.CancellationFeePercent,
		DefaultCancellationHours: cfg.Scheduling.DefaultCancellationHours,
		IdempotencyTTL:           cfg.Scheduling.IdempotencyTTL,
	})
	availability := service.NewAvailabilityResolver(db, db, db, cfg.Scheduling.ExceptionScope)
	schedules := service.NewProviderScheduleService(db, db)
	calendar := service.NewCalendarService(db)
	orphanCleaner := service.NewOrphanCleaner(db, reminders)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	orphanConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicBookingEvents, cfg.Kafka.ConsumerGroup)
	orphanWorker := worker.NewOrphanWorker(orphanConsumer, orphanCleaner)
	go func() {
		if err := orphanWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Orphan worker error", zap.Error(err))
		}
	}()

	relay := worker.NewReminderRelay(
		redisClient,
		reminders,
		db,
		eventPublisher,
		cfg.Scheduling.ReminderPollInterval,
		cfg.Scheduling.ReminderBatchSize,
	)
	go func() {
		if err := relay.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Reminder relay error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL)
	go limiter.Run(workerCtx, cfg.RateLimit.IdleTTL)

	router := gin.New()
	router.Use(gin.Logger())
	handler := api.NewHandler(
		api.Services{
			Bookings:     bookingService,
			Availability: availability,
			Schedules:    schedules,
			Reminders:    reminders,
			Calendar:     calendar,
		},
		map[string]api.ReadinessCheck{
			"database": db.Ping,
			"redis":    redisClient.Ping,
		},
		limiter,
	)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	var metricsSrv *http.Server
	if cfg.Observ.PrometheusPort != "" && cfg.Observ.PrometheusPort != cfg.Server.Port {
		metricsSrv = api.NewMetricsServer(cfg.Observ.PrometheusPort)
		go func() {
			logger.Info("Starting metrics server", zap.String("port", cfg.Observ.PrometheusPort))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server error", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server forced to shutdown", zap.Error(err))
		}
	}

	workerCancel()
	if err := orphanWorker.Stop(); err != nil {
		logger.Warn("Failed to stop orphan worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
