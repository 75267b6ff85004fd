package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HTTP span attributes
const (
	HTTPMethodKey    = attribute.Key("http.method")
	HTTPURLKey       = attribute.Key("http.url")
	HTTPStatusKey    = attribute.Key("http.status_code")
	HTTPRouteKey     = attribute.Key("http.route")
	HTTPClientIPKey  = attribute.Key("http.client_ip")
	HTTPUserAgentKey = attribute.Key("http.user_agent")
	HTTPRequestIDKey = attribute.Key("http.request_id")
)

// Fraud pipeline span attributes
const (
	TxnIDKey     = attribute.Key("fraud.txn_id")
	AccountIDKey = attribute.Key("fraud.account_id")
	CaseIDKey    = attribute.Key("fraud.case_id")
	RiskScoreKey = attribute.Key("fraud.risk_score")
	RiskLevelKey = attribute.Key("fraud.risk_level")
	DecisionKey  = attribute.Key("fraud.decision")
)

// TraceStage runs fn inside an internal span named after a pipeline stage
func TraceStage(ctx context.Context, tracerName, stage string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, stage, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}

	err := fn(ctx)
	endWithError(span, err)
	return err
}

// TraceExternal runs fn inside a client span for an outbound dependency (s3, nats, postgres)
func TraceExternal(ctx context.Context, tracerName, system, operation string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("%s.%s", system, operation),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		attribute.String("external.service", system),
		attribute.String("external.operation", operation),
	)

	err := fn(ctx)
	endWithError(span, err)
	return err
}

// TransactionAttributes describes the transaction a span works on
func TransactionAttributes(txnID, accountID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if txnID != "" {
		attrs = append(attrs, TxnIDKey.String(txnID))
	}
	if accountID != "" {
		attrs = append(attrs, AccountIDKey.String(accountID))
	}
	return attrs
}

func endWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
