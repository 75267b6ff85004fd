package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/richxcame/fraud-investigator/pkg/common"
	"github.com/richxcame/fraud-investigator/pkg/logger"
)

// ErrSentryDisabled is returned by InitSentry when no DSN is configured
var ErrSentryDisabled = stderrors.New("sentry DSN is not configured")

// SentryConfig holds configuration for Sentry integration
type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	SampleRate       float64
	TracesSampleRate float64
	Debug            bool
	ServerName       string
}

// DefaultSentryConfig reads Sentry settings from the environment
func DefaultSentryConfig(serviceName, environment string) *SentryConfig {
	traces := 1.0
	if environment == "production" {
		traces = 0.1
	}
	return &SentryConfig{
		DSN:              os.Getenv("SENTRY_DSN"),
		Environment:      environment,
		Release:          os.Getenv("SENTRY_RELEASE"),
		SampleRate:       envFloat("SENTRY_SAMPLE_RATE", 1.0),
		TracesSampleRate: envFloat("SENTRY_TRACES_SAMPLE_RATE", traces),
		Debug:            os.Getenv("SENTRY_DEBUG") == "true",
		ServerName:       serviceName,
	}
}

// InitSentry initializes the Sentry SDK with the given configuration
func InitSentry(config *SentryConfig) error {
	if config.DSN == "" {
		return ErrSentryDisabled
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              config.DSN,
		Environment:      config.Environment,
		Release:          config.Release,
		SampleRate:       config.SampleRate,
		TracesSampleRate: config.TracesSampleRate,
		EnableTracing:    config.TracesSampleRate > 0,
		Debug:            config.Debug,
		ServerName:       config.ServerName,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if event.Level == sentry.LevelInfo || event.Level == sentry.LevelDebug {
				return nil
			}
			if event.Request != nil {
				for _, h := range []string{"Authorization", "Cookie"} {
					if _, ok := event.Request.Headers[h]; ok {
						event.Request.Headers[h] = "[REDACTED]"
					}
				}
			}
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return nil
}

// Flush flushes the Sentry buffer
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// CaptureErrorWithContext reports err with the correlation id and extras from ctx.
// Client errors are skipped.
func CaptureErrorWithContext(ctx context.Context, err error, extras map[string]interface{}) *sentry.EventID {
	if err == nil || IsBusinessError(err) {
		return nil
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}

	var id *sentry.EventID
	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}
		id = hub.CaptureException(err)
	})
	return id
}

// IsBusinessError reports whether err is an expected client error that should not be reported
func IsBusinessError(err error) bool {
	var appErr *common.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code < 500
	}
	return false
}

// ShouldReportError determines if an error should be reported to Sentry
func ShouldReportError(err error, statusCode int) bool {
	if err == nil || IsBusinessError(err) {
		return false
	}
	if statusCode >= 400 && statusCode < 500 && statusCode != 429 {
		return false
	}
	return true
}

func envFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}
