package resilience

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

const (
	metricsNamespace = "fraud"
	metricsSubsystem = "dependency"
)

// Breaker series are labelled by dependency name (nats, s3)
var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "breaker_state",
		Help:      "Breaker state per dependency (0=closed, 0.5=half-open, 1=open)",
	}, []string{"dependency"})

	breakerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "breaker_calls_total",
		Help:      "Calls made through a breaker by outcome (ok, error, rejected)",
	}, []string{"dependency", "outcome"})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "breaker_transitions_total",
		Help:      "Breaker state transitions",
	}, []string{"dependency", "from", "to"})

	retryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "retry_attempts_total",
		Help:      "Individual attempts made by retried operations",
	}, []string{"operation", "result"})

	retryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "retry_duration_seconds",
		Help:      "Wall time of a retried operation including backoff",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"operation", "result"})

	retryAttemptsUsed = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "retry_attempts_used",
		Help:      "Attempts needed before success or giving up",
		Buckets:   []float64{1, 2, 3, 4, 5, 10},
	}, []string{"operation", "result"})

	retryBackoff = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "retry_backoff_seconds",
		Help:      "Backoff delays slept between attempts",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"operation"})

	anonymousBreakers uint64
)

func nextBreakerName(base string) string {
	if base != "" {
		return base
	}
	return "dependency-" + strconv.FormatUint(atomic.AddUint64(&anonymousBreakers, 1), 10)
}

func stateGaugeValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 0.5
	case gobreaker.StateOpen:
		return 1
	}
	return -1
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func recordBreakerState(name string, state gobreaker.State) {
	breakerState.WithLabelValues(name).Set(stateGaugeValue(state))
}

func recordBreakerStateChange(name string, from, to gobreaker.State) {
	breakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
	recordBreakerState(name, to)
}

// recordBreakerCall counts one call per outcome: ok, error or rejected
func recordBreakerCall(name, outcome string) {
	breakerCalls.WithLabelValues(name, outcome).Inc()
}

func recordRetryAttempt(operation string, ok bool) {
	retryAttempts.WithLabelValues(operation, resultLabel(ok)).Inc()
}

func recordRetryOutcome(operation string, seconds float64, attempts int, ok bool) {
	result := resultLabel(ok)
	retryDuration.WithLabelValues(operation, result).Observe(seconds)
	retryAttemptsUsed.WithLabelValues(operation, result).Observe(float64(attempts))
}

func recordRetryBackoff(operation string, seconds float64) {
	retryBackoff.WithLabelValues(operation).Observe(seconds)
}
