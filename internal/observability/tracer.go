package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a new span with the given name and attributes
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartClientSpan creates a span for an outgoing remote call
func StartClientSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError marks the span as errored
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks the span as successful
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Common attribute keys for lambdaburst spans
var (
	AttrRunID      = attribute.Key("lambdaburst.run_id")
	AttrFunction   = attribute.Key("lambdaburst.function")
	AttrIndex      = attribute.Key("lambdaburst.index")
	AttrRequestID  = attribute.Key("lambdaburst.request_id")
	AttrStatusCode = attribute.Key("lambdaburst.status_code")
	AttrOutcome    = attribute.Key("lambdaburst.outcome")
	AttrCount      = attribute.Key("lambdaburst.count")
)
