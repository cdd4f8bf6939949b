package observability

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext holds W3C trace context fields for propagation to the
// invoked function
type TraceContext struct {
	TraceParent string `json:"traceparent,omitempty"`
	TraceState  string `json:"tracestate,omitempty"`
}

// ExtractTraceContext extracts trace context from a context for propagation
func ExtractTraceContext(ctx context.Context) TraceContext {
	if provider == nil {
		return TraceContext{}
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	return TraceContext{
		TraceParent: carrier.Get("traceparent"),
		TraceState:  carrier.Get("tracestate"),
	}
}

// LambdaClientContext encodes the trace context as a Lambda ClientContext
// value (base64 JSON with a "custom" map). Returns "" when there is nothing
// to propagate.
func LambdaClientContext(ctx context.Context) string {
	tc := ExtractTraceContext(ctx)
	if tc.TraceParent == "" {
		return ""
	}

	custom := map[string]string{"traceparent": tc.TraceParent}
	if tc.TraceState != "" {
		custom["tracestate"] = tc.TraceState
	}
	data, err := json.Marshal(map[string]any{"custom": custom})
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// GetTraceID returns the trace ID from context as a string
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().HasTraceID() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

// GetSpanID returns the span ID from context as a string
func GetSpanID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().HasSpanID() {
		return ""
	}
	return span.SpanContext().SpanID().String()
}
