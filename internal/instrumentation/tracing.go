package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of every inboxchat span.
const TracerName = "github.com/teemow/inboxchat"

// Span attribute keys.
const (
	SpanAttrTool       = "mcp.tool"
	SpanAttrReadOnly   = "mcp.read_only"
	SpanAttrEndpoint   = "backend.endpoint"
	SpanAttrHTTPStatus = "backend.http_status"
	SpanAttrErrorKind  = "backend.error_kind"
	SpanAttrExchange   = "chat.exchange_id"
	SpanAttrAction     = "chat.action"
	SpanAttrStale      = "chat.stale"
)

// startSpan uses the global tracer provider, which NewProvider installs. Until
// then spans are no-ops.
func startSpan(ctx context.Context, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
}

// StartToolSpan starts the tool.<name> server span around one MCP tool call.
func StartToolSpan(ctx context.Context, tool string, readOnly bool) (context.Context, trace.Span) {
	return startSpan(ctx, "tool."+tool, trace.SpanKindServer,
		attribute.String(SpanAttrTool, tool),
		attribute.Bool(SpanAttrReadOnly, readOnly))
}

// StartBackendSpan starts the backend.<endpoint> client span for one gateway
// call.
func StartBackendSpan(ctx context.Context, endpoint string) (context.Context, trace.Span) {
	return startSpan(ctx, "backend."+endpoint, trace.SpanKindClient,
		attribute.String(SpanAttrEndpoint, endpoint))
}

// StartExchangeSpan starts the chat.exchange span covering one user turn.
func StartExchangeSpan(ctx context.Context, exchangeID string) (context.Context, trace.Span) {
	return startSpan(ctx, "chat.exchange", trace.SpanKindInternal,
		attribute.String(SpanAttrExchange, exchangeID))
}

// SetSpanStatus marks the span failed with err recorded, or OK when err is nil.
func SetSpanStatus(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SpanIDs returns the trace and span id of the span in ctx, or empty strings.
func SpanIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
