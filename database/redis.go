package database

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient initializes a Redis client for the catalog cache. A nil
// client is returned when no URL is configured; callers treat the cache
// as absent and read straight from Postgres.
func NewRedisClient(redisURL string, logger *zap.Logger) *redis.Client {
	if redisURL == "" {
		logger.Info("REDIS_URL not set, catalog cache disabled")
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("Invalid Redis URL, catalog cache disabled", zap.Error(err))
		return nil
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("Failed to connect to Redis, catalog cache disabled", zap.Error(err))
		return nil
	}

	logger.Info("Connected to Redis")
	return client
}
