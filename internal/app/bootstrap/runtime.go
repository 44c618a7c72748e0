// Package bootstrap builds the process-level dependencies (Postgres, Redis,
// AWS clients, email, image generation) from configuration. Every builder
// degrades gracefully: a missing optional dependency yields nil, not a crash.
package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/graftline/clinic-crm/internal/config"
	"github.com/graftline/clinic-crm/internal/notify"
	"github.com/graftline/clinic-crm/internal/simulation"
	"github.com/graftline/clinic-crm/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildPgxPool connects the Postgres pool. The database is mandatory, so
// failures propagate.
func BuildPgxPool(ctx context.Context, cfg *appconfig.Config) (*pgxpool.Pool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// BuildEmailSender picks the delivery backend from configuration. With no
// provider credentials the stub sender is returned so every email still gets
// logged.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.EmailProvider)) {
	case "ses":
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	case "sendgrid":
		if cfg.SendGridAPIKey != "" {
			return notify.NewSendGridSender(notify.SendGridConfig{
				APIKey:    cfg.SendGridAPIKey,
				FromEmail: cfg.SendGridFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		}
	}
	logger.Info("email delivery disabled, using stub sender")
	return notify.NewStubEmailSender(logger)
}

// BuildPhotoStore wires S3-backed patient photo storage. Without a bucket the
// store is disabled but still safe to call.
func BuildPhotoStore(awsCfg aws.Config, cfg *appconfig.Config, logger *logging.Logger) *simulation.PhotoStore {
	return simulation.NewPhotoStore(s3.NewFromConfig(awsCfg), cfg.PhotoBucket, logger)
}

// BuildImageGenerator connects the Gemini image model, or returns nil when no
// API key is configured.
func BuildImageGenerator(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (simulation.ImageGenerator, error) {
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		if logger != nil {
			logger.Info("gemini api key not set, simulation disabled")
		}
		return nil, nil
	}
	return simulation.NewGeminiImageClient(ctx, cfg.GeminiAPIKey, cfg.GeminiImageModel)
}
