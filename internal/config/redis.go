package config

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InitRedis creates a Redis client with the given configuration.
// Returns nil if Redis is not configured (host is empty).
func InitRedis(ctx context.Context, cfg *AppConfig, logger *zap.Logger) (*redis.Client, error) {
	if cfg.Redis.Host == "" {
		logger.Info("Redis not configured, reset lock disabled")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), 5)
	err := backoff.Retry(func() error {
		return client.Ping(ctx).Err()
	}, backoff.WithContext(b, ctx))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis", zap.String("addr", client.Options().Addr))
	return client, nil
}
