package health_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/fraud-investigator/pkg/health"
	"github.com/richxcame/fraud-investigator/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok() health.PingFunc {
	return func(context.Context) error { return nil }
}

func failing() health.PingFunc {
	return func(context.Context) error { return errors.New("connection refused") }
}

func newChecker() *health.DeepChecker {
	cfg := health.DefaultDeepCheckerConfig()
	cfg.CacheTTL = 0
	return health.NewDeepChecker(cfg)
}

func TestDeepChecker_CheckWithNoDependencies(t *testing.T) {
	status := newChecker().Check(context.Background())

	assert.Equal(t, health.StatusHealthy, status.Status)
	assert.Empty(t, status.Dependencies)
	assert.Empty(t, status.Breakers)
	assert.False(t, status.CheckedAt.IsZero())
}

func TestDeepChecker_CriticalFailureIsUnhealthy(t *testing.T) {
	checker := newChecker()
	checker.AddDependency("postgres", failing(), true)
	checker.AddDependency("redis", ok(), false)

	status := checker.Check(context.Background())

	assert.Equal(t, health.StatusUnhealthy, status.Status)
	assert.Equal(t, health.StatusUnhealthy, status.Dependencies["postgres"].Status)
	assert.Contains(t, status.Dependencies["postgres"].Message, "connection refused")
	assert.False(t, checker.IsReady(context.Background()))
}

func TestDeepChecker_OptionalFailureIsDegraded(t *testing.T) {
	checker := newChecker()
	checker.AddDependency("postgres", ok(), true)
	checker.AddDependency("nats", failing(), false)

	status := checker.Check(context.Background())

	assert.Equal(t, health.StatusDegraded, status.Status)
	assert.True(t, checker.IsReady(context.Background()))
}

func TestDeepChecker_TimeoutIsApplied(t *testing.T) {
	cfg := health.DefaultDeepCheckerConfig()
	cfg.CacheTTL = 0
	cfg.Timeout = 20 * time.Millisecond
	checker := health.NewDeepChecker(cfg)
	checker.AddDependency("s3", health.PingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), false)

	status := checker.Check(context.Background())
	assert.Equal(t, health.StatusDegraded, status.Status)
}

func TestDeepChecker_AddCircuitBreaker(t *testing.T) {
	checker := newChecker()
	checker.AddCircuitBreaker("s3", resilience.NewCircuitBreaker(resilience.Settings{
		Name:             "health-test",
		FailureThreshold: 5,
	}))

	status := checker.Check(context.Background())

	require.Len(t, status.Breakers, 1)
	assert.Equal(t, "closed", status.Breakers["s3"].State)
	assert.True(t, status.Breakers["s3"].Allows)
}

func TestDeepChecker_CachesResults(t *testing.T) {
	cfg := health.DefaultDeepCheckerConfig()
	cfg.CacheTTL = time.Minute
	checker := health.NewDeepChecker(cfg)

	var calls int32
	checker.AddDependency("postgres", health.PingFunc(func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}), true)

	checker.Check(context.Background())
	checker.Check(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDeepChecker_ReadinessHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	checker := newChecker()
	checker.AddDependency("postgres", failing(), true)

	router := gin.New()
	router.GET("/health/ready", checker.ReadinessHandler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not ready")
}
