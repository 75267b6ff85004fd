package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/richxcame/fraud-investigator/pkg/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware creates a middleware for OpenTelemetry tracing
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	tracer := otel.Tracer(serviceName)

	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				tracing.HTTPMethodKey.String(c.Request.Method),
				tracing.HTTPRouteKey.String(route),
				tracing.HTTPClientIPKey.String(c.ClientIP()),
				tracing.HTTPUserAgentKey.String(c.Request.UserAgent()),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		if span.SpanContext().HasTraceID() {
			c.Header("X-Trace-ID", span.SpanContext().TraceID().String())
		}
		if requestID := GetCorrelationID(c); requestID != "" {
			span.SetAttributes(tracing.HTTPRequestIDKey.String(requestID))
		}

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(tracing.HTTPStatusKey.Int(status))
		switch {
		case len(c.Errors) > 0:
			for _, err := range c.Errors {
				span.RecordError(err.Err)
			}
			span.SetStatus(codes.Error, c.Errors.String())
		case status >= 500:
			span.SetStatus(codes.Error, "Internal Server Error")
		default:
			span.SetStatus(codes.Ok, "")
		}
	}
}
