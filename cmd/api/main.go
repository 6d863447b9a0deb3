package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/learnloop/notification-engine/internal/config"
	"github.com/learnloop/notification-engine/internal/handler"
	"github.com/learnloop/notification-engine/internal/infra/postgresql"
	"github.com/learnloop/notification-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/learnloop/notification-engine/internal/infra/redis"
	"github.com/learnloop/notification-engine/internal/observability"
	"github.com/learnloop/notification-engine/internal/repository"
	"github.com/learnloop/notification-engine/internal/service"
	"github.com/learnloop/notification-engine/internal/tracker"
	"github.com/learnloop/notification-engine/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	notifications := repository.NewGormNotificationRepo(db)
	logs := repository.NewGormDeliveryLogRepo(db)

	deduper, err := infraredis.NewEventDedupeStore(rdb, time.Duration(cfg.EventDedupeTTLHours)*time.Hour)
	if err != nil {
		logger.Fatal("event dedupe store init failed", zap.Error(err))
	}

	statusTracker := tracker.New(notifications, logs, deduper, logger)

	notificationService, err := service.NewNotificationService(notifications, logs, statusTracker, logger)
	if err != nil {
		logger.Fatal("notification service init failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	notificationService.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", metricsRoute(metrics.Handler()))

	if err := handler.RegisterNotificationRoutes(app, notificationService); err != nil {
		logger.Fatal("notification routes init failed", zap.Error(err))
	}
	if err := handler.RegisterCallbackRoutes(app, statusTracker, metrics); err != nil {
		logger.Fatal("callback routes init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("notification api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	group.Go(func() error {
		<-groupCtx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		logger.Fatal("api terminated", zap.Error(err))
	}

	logger.Info("notification api stopped")
}

func metricsRoute(h http.Handler) fiber.Handler {
	fastHandler := fasthttpadaptor.NewFastHTTPHandler(h)
	return func(c *fiber.Ctx) error {
		fastHandler(c.Context())
		return nil
	}
}
