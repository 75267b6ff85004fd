package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/richxcame/fraud-investigator/pkg/logger"
	redisclient "github.com/richxcame/fraud-investigator/pkg/redis"
	"go.uber.org/zap"
)

// Manager handles caching operations with JSON serialization
type Manager struct {
	redis redisclient.ClientInterface
}

// NewManager creates a new cache manager
func NewManager(redis redisclient.ClientInterface) *Manager {
	return &Manager{redis: redis}
}

// Get retrieves a cached value and unmarshals it into result.
// A missing key yields an error for which redis.IsNil is true.
func (m *Manager) Get(ctx context.Context, key string, result interface{}) error {
	data, err := m.redis.GetString(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), result)
}

// Set marshals and caches a value with expiration
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return m.redis.SetWithExpiration(ctx, key, string(data), ttl)
}

// Delete removes keys from cache
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	return m.redis.Delete(ctx, keys...)
}

// GetOrLoad returns the cached value for key or calls load and caches its result.
// Cache failures are logged and never fail the call.
func GetOrLoad[T any](ctx context.Context, m *Manager, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if m == nil {
		return load(ctx)
	}

	err := m.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !redisclient.IsNil(err) {
		logger.WarnContext(ctx, "cache read failed", zap.String("key", key), zap.Error(err))
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	if err := m.Set(ctx, key, value, ttl); err != nil {
		logger.WarnContext(ctx, "cache write failed", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}

// Keys for cached fraud data
func CaseKey(caseID string) string {
	return "fraud:case:" + caseID
}

func SystemStatsKey(tz string) string {
	return "fraud:stats:system:" + tz
}

func DailyVolumeKey(days int, tz string) string {
	return fmt.Sprintf("fraud:stats:daily:%d:%s", days, tz)
}
