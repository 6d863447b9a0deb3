package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	DispatchIntervalSec int `env:"DISPATCH_INTERVAL_SEC,default=5"`
	DispatchBatchSize   int `env:"DISPATCH_BATCH_SIZE,default=100"`
	WorkerConcurrency   int `env:"WORKER_CONCURRENCY,default=16"`
	RateLimitPerSec     int `env:"RATE_LIMIT_PER_SEC,default=100"`
	SMSRateLimitPerSec  int `env:"SMS_RATE_LIMIT_PER_SEC,default=0"`

	RetryBaseDelaySec int `env:"RETRY_BASE_DELAY_SEC,default=30"`
	RetryMaxDelaySec  int `env:"RETRY_MAX_DELAY_SEC,default=3600"`
	RetryMaxAttempts  int `env:"RETRY_MAX_ATTEMPTS,default=5"`

	LogRetentionDays     int `env:"LOG_RETENTION_DAYS,default=90"`
	RetentionSweepMin    int `env:"RETENTION_SWEEP_MIN,default=60"`
	EventDedupeTTLHours  int `env:"EVENT_DEDUPE_TTL_HOURS,default=24"`
	ConsumerPrefetch     int `env:"CONSUMER_PREFETCH,default=32"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	SMSGatewayURL string `env:"SMS_GATEWAY_URL"`
	SMSAPIKey     string `env:"SMS_API_KEY"`

	PushServiceURL string `env:"PUSH_SERVICE_URL"`
	PushAPIKey     string `env:"PUSH_API_KEY"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
