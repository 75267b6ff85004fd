package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/fraud-investigator/pkg/resilience"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Pinger is anything that can report its own reachability
type Pinger interface {
	Check(ctx context.Context) error
}

// PingFunc adapts a function to Pinger, e.g. pgxpool.Pool.Ping
type PingFunc func(ctx context.Context) error

func (f PingFunc) Check(ctx context.Context) error { return f(ctx) }

// DependencyStatus represents the health status of a single dependency
type DependencyStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Critical  bool      `json:"critical"`
	LatencyMS int64     `json:"latency_ms"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// DeepHealthStatus represents the complete health status of the service
type DeepHealthStatus struct {
	Status        string                      `json:"status"`
	Version       string                      `json:"version,omitempty"`
	UptimeSeconds int64                       `json:"uptime_seconds"`
	Dependencies  map[string]DependencyStatus `json:"dependencies"`
	Breakers      map[string]BreakerStatus    `json:"circuit_breakers,omitempty"`
	CheckedAt     time.Time                   `json:"checked_at"`
}

// BreakerStatus represents the status of a circuit breaker
type BreakerStatus struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Allows bool   `json:"allows_requests"`
}

type dependency struct {
	pinger   Pinger
	critical bool
}

// DeepChecker checks every registered dependency concurrently and caches the
// result for CacheTTL. A failing critical dependency makes the service
// unhealthy; anything else only degrades it.
type DeepChecker struct {
	deps      map[string]dependency
	breakers  map[string]*resilience.CircuitBreaker
	version   string
	startTime time.Time
	timeout   time.Duration
	cacheTTL  time.Duration

	mu          sync.RWMutex
	lastResult  *DeepHealthStatus
	lastChecked time.Time
}

// DeepCheckerConfig holds configuration for the deep checker
type DeepCheckerConfig struct {
	Version  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// DefaultDeepCheckerConfig returns sensible defaults
func DefaultDeepCheckerConfig() DeepCheckerConfig {
	return DeepCheckerConfig{
		Version:  "unknown",
		Timeout:  2 * time.Second,
		CacheTTL: 5 * time.Second,
	}
}

// NewDeepChecker creates a new deep health checker
func NewDeepChecker(config DeepCheckerConfig) *DeepChecker {
	return &DeepChecker{
		deps:      make(map[string]dependency),
		breakers:  make(map[string]*resilience.CircuitBreaker),
		version:   config.Version,
		startTime: time.Now(),
		timeout:   config.Timeout,
		cacheTTL:  config.CacheTTL,
	}
}

// AddDependency registers a dependency to ping
func (d *DeepChecker) AddDependency(name string, p Pinger, critical bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deps[name] = dependency{pinger: p, critical: critical}
	d.lastResult = nil
}

// AddCircuitBreaker adds a circuit breaker to monitor
func (d *DeepChecker) AddCircuitBreaker(name string, breaker *resilience.CircuitBreaker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakers[name] = breaker
	d.lastResult = nil
}

// Check performs a deep health check on all dependencies
func (d *DeepChecker) Check(ctx context.Context) *DeepHealthStatus {
	d.mu.RLock()
	if d.lastResult != nil && time.Since(d.lastChecked) < d.cacheTTL {
		result := d.lastResult
		d.mu.RUnlock()
		return result
	}
	deps := make(map[string]dependency, len(d.deps))
	for name, dep := range d.deps {
		deps[name] = dep
	}
	breakers := make(map[string]*resilience.CircuitBreaker, len(d.breakers))
	for name, b := range d.breakers {
		breakers[name] = b
	}
	d.mu.RUnlock()

	status := &DeepHealthStatus{
		Status:        StatusHealthy,
		Version:       d.version,
		UptimeSeconds: int64(time.Since(d.startTime).Seconds()),
		Dependencies:  make(map[string]DependencyStatus, len(deps)),
		Breakers:      make(map[string]BreakerStatus, len(breakers)),
		CheckedAt:     time.Now(),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, dep := range deps {
		wg.Add(1)
		go func(name string, dep dependency) {
			defer wg.Done()
			result := d.checkDependency(ctx, name, dep)

			mu.Lock()
			defer mu.Unlock()
			status.Dependencies[name] = result
			if result.Status == StatusUnhealthy {
				if dep.critical {
					status.Status = StatusUnhealthy
				} else if status.Status == StatusHealthy {
					status.Status = StatusDegraded
				}
			}
		}(name, dep)
	}
	wg.Wait()

	for name, breaker := range breakers {
		allows := breaker.Allow()
		state := "closed"
		if !allows {
			state = "open"
			if status.Status == StatusHealthy {
				status.Status = StatusDegraded
			}
		}
		status.Breakers[name] = BreakerStatus{Name: name, State: state, Allows: allows}
	}

	d.mu.Lock()
	d.lastResult = status
	d.lastChecked = time.Now()
	d.mu.Unlock()

	return status
}

func (d *DeepChecker) checkDependency(ctx context.Context, name string, dep dependency) DependencyStatus {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result := DependencyStatus{
		Name:      name,
		Status:    StatusHealthy,
		Critical:  dep.critical,
		CheckedAt: start,
	}
	if err := dep.pinger.Check(checkCtx); err != nil {
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("check failed: %v", err)
	}
	result.LatencyMS = time.Since(start).Milliseconds()
	return result
}

// GinHandler reports the full dependency picture. Degraded still answers 200.
func (d *DeepChecker) GinHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := d.Check(c.Request.Context())
		code := http.StatusOK
		if status.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	}
}

// ReadinessHandler answers 503 until every critical dependency is reachable
func (d *DeepChecker) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := d.Check(c.Request.Context())
		if status.Status == StatusUnhealthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "dependencies": status.Dependencies})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "dependencies": status.Dependencies})
	}
}

// IsReady reports whether every critical dependency is reachable
func (d *DeepChecker) IsReady(ctx context.Context) bool {
	return d.Check(ctx).Status != StatusUnhealthy
}
