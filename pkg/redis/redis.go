package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrHostRequired indicates a missing Redis host in the configuration.
var ErrHostRequired = errors.New("redis host is required")

// DefaultConnectTimeout bounds the initial connectivity check.
const DefaultConnectTimeout = 5 * time.Second

// Config holds connection settings for a standalone Redis instance.
type Config struct {
	Host     string
	Password string
	DB       int
}

// Connect creates a Redis client and verifies connectivity before
// returning it. The caller owns Close.
func Connect(cfg Config) (*goredis.Client, error) {
	if cfg.Host == "" {
		return nil, ErrHostRequired
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Host,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), DefaultConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// Ping checks if the connection is alive and returns latency.
func Ping(ctx context.Context, client *goredis.Client) (time.Duration, error) {
	start := time.Now()
	if err := client.Ping(ctx).Err(); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
