package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/richxcame/fraud-investigator/pkg/logger"
	"go.uber.org/zap"
)

// RetryConfig defines the configuration for retry behavior
type RetryConfig struct {
	// MaxAttempts includes the initial attempt
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	EnableJitter      bool
	// RetryableChecker decides whether an error is worth another attempt.
	// When nil every error except cancellation and an open breaker is retried.
	RetryableChecker func(error) bool
}

// DefaultRetryConfig returns a sensible default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		EnableJitter:      true,
	}
}

// Do executes fn with exponential backoff and records metrics under name.
func Do[T any](ctx context.Context, config RetryConfig, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}

	startTime := time.Now()
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			recordRetryOutcome(name, time.Since(startTime).Seconds(), attempt, false)
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			recordRetryAttempt(name, true)
			recordRetryOutcome(name, time.Since(startTime).Seconds(), attempt, true)
			if attempt > 1 {
				logger.Get().Info("operation succeeded after retry",
					zap.Int("attempt", attempt),
					zap.String("operation", name),
				)
			}
			return result, nil
		}

		recordRetryAttempt(name, false)
		lastErr = err

		if !shouldRetry(err, config) {
			recordRetryOutcome(name, time.Since(startTime).Seconds(), attempt, false)
			return zero, err
		}

		if attempt == config.MaxAttempts {
			logger.Get().Warn("operation failed after all retry attempts",
				zap.Error(err),
				zap.Int("attempts", attempt),
				zap.String("operation", name),
			)
			break
		}

		backoff := calculateBackoff(attempt, config)
		recordRetryBackoff(name, backoff.Seconds())

		logger.Get().Debug("retrying operation after backoff",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.String("operation", name),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			recordRetryOutcome(name, time.Since(startTime).Seconds(), attempt, false)
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	recordRetryOutcome(name, time.Since(startTime).Seconds(), config.MaxAttempts, false)
	return zero, lastErr
}

// DoWithBreaker retries fn, sending every attempt through breaker.
func DoWithBreaker[T any](ctx context.Context, config RetryConfig, breaker *CircuitBreaker, name string, fn func(context.Context) (T, error)) (T, error) {
	return Do(ctx, config, name, func(ctx context.Context) (T, error) {
		var zero T
		out, err := breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return fn(ctx)
		})
		if err != nil {
			return zero, err
		}
		if out == nil {
			return zero, nil
		}
		return out.(T), nil
	})
}

// calculateBackoff: initial * multiplier^(attempt-1), capped at MaxBackoff
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	multiplier := config.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	backoff := float64(config.InitialBackoff) * math.Pow(multiplier, float64(attempt-1))
	if config.MaxBackoff > 0 && backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}

	duration := time.Duration(backoff)
	if config.EnableJitter && duration > 0 {
		// full jitter
		duration = time.Duration(rand.Int63n(int64(duration)))
	}
	return duration
}

func shouldRetry(err error, config RetryConfig) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	if config.RetryableChecker != nil {
		return config.RetryableChecker(err)
	}
	return true
}
