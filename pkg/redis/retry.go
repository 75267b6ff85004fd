package redis

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/fraud-investigator/pkg/resilience"
)

func retryable[T any](ctx context.Context, name string, op func(context.Context) (T, error)) (T, error) {
	cfg := resilience.DefaultRetryConfig()
	cfg.InitialBackoff = 50 * time.Millisecond
	cfg.MaxBackoff = time.Second
	cfg.RetryableChecker = isRedisRetryable
	return resilience.Do(ctx, cfg, name, op)
}

// isRedisRetryable retries network and loading errors but never a cache miss
func isRedisRetryable(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"loading", "tryagain", "connection refused", "connection reset", "i/o timeout", "broken pipe"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
