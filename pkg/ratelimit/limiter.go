package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/richxcame/fraud-investigator/pkg/config"
)

// Rule is a token bucket: Limit tokens refill per Window, with Burst extra capacity.
type Rule struct {
	Limit  int
	Burst  int
	Window time.Duration
}

// Result captures the outcome of a rate limiting decision.
type Result struct {
	Allowed     bool
	Remaining   int
	RetryAfter  time.Duration
	ResetAfter  time.Duration
	Limit       int
	IdentityKey string
}

// Limiter implements a Redis-backed token bucket shared by every replica.
type Limiter struct {
	client redis.Scripter
	cfg    config.RateLimitConfig
	script *redis.Script
	now    func() time.Time
}

const tokenBucketScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local refillRate = tonumber(ARGV[2])
local capacity = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local data = redis.call("HMGET", key, "tokens", "timestamp")
local tokens = tonumber(data[1])
local timestamp = tonumber(data[2])

if tokens == nil then
    tokens = capacity
    timestamp = now
else
    if timestamp == nil then
        timestamp = now
    end
    local delta = now - timestamp
    if delta > 0 then
        tokens = math.min(capacity, tokens + (delta * refillRate))
        timestamp = now
    end
end

local allowed = 0
if tokens >= 1 then
    allowed = 1
    tokens = tokens - 1
end

redis.call("HMSET", key, "tokens", tokens, "timestamp", now)
redis.call("PEXPIRE", key, ttl)

local retryAfter = 0
if allowed == 0 then
    retryAfter = math.ceil((1 - tokens) / refillRate)
end

return {allowed, tostring(tokens), retryAfter}
`

// NewLimiter creates a new Limiter instance.
func NewLimiter(client redis.Scripter, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client: client,
		cfg:    cfg,
		script: redis.NewScript(tokenBucketScript),
		now:    time.Now,
	}
}

// Rule returns the ingest bucket configured for this limiter.
func (l *Limiter) Rule() Rule {
	burst := l.cfg.IngestBurst
	if burst < 0 {
		burst = 0
	}
	return Rule{Limit: l.cfg.IngestLimit, Burst: burst, Window: l.cfg.Window()}
}

// ScriptHash is the SHA1 the token bucket script is invoked by.
func (l *Limiter) ScriptHash() string {
	return l.script.Hash()
}

// Enabled reports whether requests are actually limited.
func (l *Limiter) Enabled() bool {
	return l != nil && l.cfg.Enabled && l.cfg.IngestLimit > 0
}

// Allow takes one token from the bucket of identityKey.
func (l *Limiter) Allow(ctx context.Context, identityKey string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true, IdentityKey: identityKey}, nil
	}
	rule := l.Rule()

	key := fmt.Sprintf("%s:ingest:%s", l.cfg.RedisPrefix, identityKey)

	windowMillis := rule.Window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = int64(time.Minute / time.Millisecond)
	}
	refillRate := float64(rule.Limit) / float64(windowMillis)
	capacity := float64(rule.Limit + rule.Burst)

	now := l.now().UnixMilli()
	raw, err := l.script.Run(ctx, l.client, []string{key}, now, formatFloat(refillRate), formatFloat(capacity), windowMillis*2).Result()
	if err != nil {
		return Result{}, fmt.Errorf("run token bucket: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return Result{}, errors.New("unexpected script response")
	}

	allowed := toInt(values[0])
	remainingTokens := toFloat(values[1])
	retryAfterMillis := toInt(values[2])

	result := Result{
		Allowed:     allowed == 1,
		Remaining:   int(math.Max(0, math.Floor(remainingTokens))),
		RetryAfter:  time.Duration(retryAfterMillis) * time.Millisecond,
		ResetAfter:  time.Duration(retryAfterMillis) * time.Millisecond,
		Limit:       rule.Limit,
		IdentityKey: identityKey,
	}

	if result.Allowed {
		missing := math.Max(0, capacity-remainingTokens)
		result.ResetAfter = time.Duration(math.Ceil(missing/refillRate)) * time.Millisecond
		result.RetryAfter = 0
	}

	return result, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 10, 64)
}

func toInt(value interface{}) int {
	switch v := value.(type) {
	case int64:
		return int(v)
	case int:
		return v
	case string:
		i, _ := strconv.Atoi(v)
		return i
	case float64:
		return int(v)
	default:
		return 0
	}
}

func toFloat(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

// WithNow overrides the time source (useful for tests).
func (l *Limiter) WithNow(now func() time.Time) {
	l.now = now
}
