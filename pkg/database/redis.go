package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vaforge/vaforge-engine/pkg/config"
)

// NewRedisClient creates a Redis client for the enrichment queue.
// Returns nil if Redis is not configured (host is empty).
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if !cfg.IsConfigured() {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
