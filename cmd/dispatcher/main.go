package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/learnloop/notification-engine/internal/adapter"
	"github.com/learnloop/notification-engine/internal/config"
	"github.com/learnloop/notification-engine/internal/dispatch"
	"github.com/learnloop/notification-engine/internal/domain"
	"github.com/learnloop/notification-engine/internal/infra/postgresql"
	"github.com/learnloop/notification-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/learnloop/notification-engine/internal/infra/redis"
	"github.com/learnloop/notification-engine/internal/observability"
	"github.com/learnloop/notification-engine/internal/queue"
	"github.com/learnloop/notification-engine/internal/repository"
	"github.com/learnloop/notification-engine/internal/retry"
	"github.com/learnloop/notification-engine/internal/service"
	"github.com/learnloop/notification-engine/internal/tracker"
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

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer mq.Close()

	notifications := repository.NewGormNotificationRepo(db)
	logs := repository.NewGormDeliveryLogRepo(db)

	deduper, err := infraredis.NewEventDedupeStore(rdb, time.Duration(cfg.EventDedupeTTLHours)*time.Hour)
	if err != nil {
		logger.Fatal("event dedupe store init failed", zap.Error(err))
	}

	statusTracker := tracker.New(notifications, logs, deduper, logger)

	overrides := map[domain.Channel]int{}
	if cfg.SMSRateLimitPerSec > 0 {
		overrides[domain.ChannelSMS] = cfg.SMSRateLimitPerSec
	}
	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec, overrides)
	if err != nil {
		logger.Fatal("rate limiter init failed", zap.Error(err))
	}

	registry, err := buildRegistry(cfg, mq, logger)
	if err != nil {
		logger.Fatal("adapter registry init failed", zap.Error(err))
	}

	policy := retry.NewPolicy(
		time.Duration(cfg.RetryBaseDelaySec)*time.Second,
		time.Duration(cfg.RetryMaxDelaySec)*time.Second,
		cfg.RetryMaxAttempts,
	)

	engine, err := dispatch.NewEngine(
		notifications,
		registry,
		statusTracker,
		policy,
		rateLimiter,
		time.Duration(cfg.DispatchIntervalSec)*time.Second,
		cfg.DispatchBatchSize,
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("dispatch engine init failed", zap.Error(err))
	}

	sweeper, err := service.NewRetentionSweeper(
		logs,
		time.Duration(cfg.LogRetentionDays)*24*time.Hour,
		time.Duration(cfg.RetentionSweepMin)*time.Minute,
		logger,
	)
	if err != nil {
		logger.Fatal("retention sweeper init failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	engine.SetMetrics(metrics)
	sweeper.SetMetrics(metrics)

	consumer := queue.NewRabbitMQDeliveryEventConsumer(mq, cfg.ConsumerPrefetch, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.APIPort),
		Handler: mux,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("dispatcher started",
			zap.Int("batchSize", cfg.DispatchBatchSize),
			zap.Int("concurrency", cfg.WorkerConcurrency),
			zap.Strings("channels", channelNames(registry)),
		)
		return engine.Start(groupCtx)
	})

	group.Go(func() error {
		return consumer.Consume(groupCtx, func(ctx context.Context, event queue.DeliveryEvent) error {
			if err := statusTracker.OnProviderEvent(ctx, event); err != nil {
				return err
			}
			metrics.IncProviderEvent(event.Kind.String())
			return nil
		})
	})

	group.Go(func() error {
		return sweeper.Start(groupCtx)
	})

	group.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		logger.Fatal("dispatcher terminated", zap.Error(err))
	}

	logger.Info("dispatcher stopped")
}

// buildRegistry registers an adapter for every channel with usable
// provider settings. Channels without settings stay unregistered and the
// engine fails their notifications instead of crashing at startup.
func buildRegistry(cfg *config.Config, mq *queue.RabbitMQ, logger *zap.Logger) (*adapter.Registry, error) {
	var adapters []adapter.Adapter

	if strings.TrimSpace(cfg.SMTPHost) != "" {
		email, err := adapter.NewEmailAdapter(adapter.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			return nil, fmt.Errorf("email adapter: %w", err)
		}
		adapters = append(adapters, email)
	} else {
		logger.Warn("smtp host not configured, email channel disabled")
	}

	if strings.TrimSpace(cfg.SMSGatewayURL) != "" {
		sms, err := adapter.NewSMSAdapter(cfg.SMSGatewayURL, cfg.SMSAPIKey)
		if err != nil {
			return nil, fmt.Errorf("sms adapter: %w", err)
		}
		adapters = append(adapters, sms)
	} else {
		logger.Warn("sms gateway not configured, sms channel disabled")
	}

	if strings.TrimSpace(cfg.PushServiceURL) != "" {
		push, err := adapter.NewPushAdapter(cfg.PushServiceURL, cfg.PushAPIKey)
		if err != nil {
			return nil, fmt.Errorf("push adapter: %w", err)
		}
		adapters = append(adapters, push)
	} else {
		logger.Warn("push service not configured, push channel disabled")
	}

	inApp, err := adapter.NewInAppAdapter(queue.NewRabbitMQInboxPublisher(mq))
	if err != nil {
		return nil, fmt.Errorf("in_app adapter: %w", err)
	}
	adapters = append(adapters, inApp, adapter.NewWebhookAdapter())

	return adapter.NewRegistry(adapters...)
}

func channelNames(registry *adapter.Registry) []string {
	channels := registry.Channels()
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.String())
	}
	return names
}
