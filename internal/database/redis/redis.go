// Package redis holds the cache client the checkpoint repository uses
// to answer session resumes without a round trip to the document store.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"underwriting-service/internal/config"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis connection serving the checkpoint read cache.
// Losing it degrades resume latency, never correctness: the repository
// treats every cache miss as a document-store read.
type Client struct {
	client *redis.Client
}

func NewRedisClient(cfg config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Checkpoint cache connected", "host", cfg.Host, "port", cfg.Port, "db", cfg.DB)
	return &Client{client: client}, nil
}

func (c *Client) GetClient() *redis.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}
