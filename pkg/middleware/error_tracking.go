package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/richxcame/fraud-investigator/pkg/common"
	"github.com/richxcame/fraud-investigator/pkg/errors"
	"github.com/richxcame/fraud-investigator/pkg/logger"
	"go.uber.org/zap"
)

// SentryMiddleware attaches a per-request Sentry hub
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// ErrorHandler reports unexpected handler errors and 5xx responses to Sentry
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		statusCode := c.Writer.Status()
		for _, ginErr := range c.Errors {
			if errors.ShouldReportError(ginErr.Err, statusCode) {
				captureError(c, ginErr.Err, statusCode, time.Since(start))
			}
		}
		if statusCode >= 500 && len(c.Errors) == 0 {
			captureError(c, fmt.Errorf("HTTP %d: %s %s", statusCode, c.Request.Method, c.Request.URL.Path), statusCode, time.Since(start))
		}
	}
}

// RecoveryWithSentry recovers from panics, reports them and answers 500
func RecoveryWithSentry() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				hub := hubFor(c)
				hub.WithScope(func(scope *sentry.Scope) {
					scope.SetRequest(c.Request)
					scope.SetTag("correlation_id", GetCorrelationID(c))
					hub.RecoverWithContext(c.Request.Context(), rec)
				})

				logger.WithContext(c.Request.Context()).Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)

				c.Abort()
				common.ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
			}
		}()

		c.Next()
	}
}

func captureError(c *gin.Context, err error, statusCode int, duration time.Duration) {
	hub := hubFor(c)
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(c.Request)
		scope.SetLevel(sentryLevel(statusCode))
		scope.SetTag("http.method", c.Request.Method)
		scope.SetTag("http.status_code", fmt.Sprintf("%d", statusCode))
		scope.SetTag("endpoint", c.FullPath())
		scope.SetTag("correlation_id", GetCorrelationID(c))
		if userID := c.GetString(userIDKey); userID != "" {
			scope.SetUser(sentry.User{ID: userID, IPAddress: c.ClientIP()})
		}
		scope.SetContext("http", map[string]interface{}{
			"status_code": statusCode,
			"duration_ms": duration.Milliseconds(),
			"handler":     c.HandlerName(),
		})
		hub.CaptureException(err)
	})
}

func hubFor(c *gin.Context) *sentry.Hub {
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		return hub
	}
	return sentry.CurrentHub().Clone()
}

func sentryLevel(statusCode int) sentry.Level {
	switch {
	case statusCode >= 500:
		return sentry.LevelError
	case statusCode == http.StatusTooManyRequests:
		return sentry.LevelWarning
	default:
		return sentry.LevelInfo
	}
}
