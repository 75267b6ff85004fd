package redis

import (
	"context"
	"time"
)

// ClientInterface defines the Redis operations the cache layer relies on
type ClientInterface interface {
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)
