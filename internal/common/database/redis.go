// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"render-workers/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the Redis connection backing the record store.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis creates a new Redis client. It does not dial until first use.
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	return &RedisClient{Client: rdb}, nil
}

// Ping tests the Redis connection
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
