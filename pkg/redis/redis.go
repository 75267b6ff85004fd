package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/fraud-investigator/pkg/config"
)

// ErrNil is returned when a key does not exist
var ErrNil = redis.Nil

// Client wraps the Redis client
type Client struct {
	*redis.Client
}

// NewRedisClient creates a new Redis client and pings it
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return &Client{Client: client}, nil
}

// Wrap adapts an existing go-redis client, e.g. one returned by redismock
func Wrap(client *redis.Client) *Client {
	return &Client{Client: client}
}

// SetWithExpiration sets a key-value pair with expiration
func (c *Client) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	_, err := retryable(ctx, "redis.set", func(ctx context.Context) (string, error) {
		return c.Set(ctx, key, value, expiration).Result()
	})
	return err
}

// GetString gets a string value by key. Missing keys return ErrNil.
func (c *Client) GetString(ctx context.Context, key string) (string, error) {
	return retryable(ctx, "redis.get", func(ctx context.Context) (string, error) {
		return c.Get(ctx, key).Result()
	})
}

// Delete deletes keys
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.Del(ctx, keys...).Err()
}

// Check pings the server for readiness probes
func (c *Client) Check(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// IsNil reports whether err means the key was absent
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
