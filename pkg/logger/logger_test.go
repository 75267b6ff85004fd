package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func withObserver(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	original := Get()
	Replace(zap.New(core))
	t.Cleanup(func() { Replace(original) })
	return recorded
}

func TestContextWithCorrelationID(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "test-id")
	if got := CorrelationIDFromContext(ctx); got != "test-id" {
		t.Fatalf("expected correlation ID %q, got %q", "test-id", got)
	}
}

func TestCorrelationIDFromNilContext(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	if got := CorrelationIDFromContext(nil); got != "" {
		t.Fatalf("expected empty correlation ID, got %q", got)
	}
}

func TestWithContextAddsCorrelationIDField(t *testing.T) {
	recorded := withObserver(t)

	ctx := ContextWithCorrelationID(context.Background(), "context-id")
	WithContext(ctx).Info("test message")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}

	correlationID, ok := entries[0].ContextMap()["correlation_id"]
	if !ok {
		t.Fatalf("expected correlation_id field to be present")
	}
	if correlationID != "context-id" {
		t.Fatalf("expected correlation_id %q, got %v", "context-id", correlationID)
	}
}

func TestNamedAddsComponentField(t *testing.T) {
	recorded := withObserver(t)

	Named("pipeline").Warn("slow")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["component"]; got != "pipeline" {
		t.Fatalf("expected component %q, got %v", "pipeline", got)
	}
}
