package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrEndpoint  = "endpoint"
	attrErrorKind = "error_kind"
	attrReason    = "reason"
	attrFrom      = "from"
	attrTo        = "to"
	attrAction    = "action"
	attrTool      = "tool"
	attrDomain    = "user_domain"
)

// Metrics provides methods for recording observability metrics.
//
// All methods are safe to call on a nil *Metrics or on a zero Metrics, in
// which case nothing is recorded. Stores receive a nil recorder in tests.
type Metrics struct {
	// Backend gateway metrics
	backendRequestsTotal   metric.Int64Counter
	backendRequestDuration metric.Float64Histogram
	credentialWipesTotal   metric.Int64Counter

	// Session metrics
	sessionTransitionsTotal metric.Int64Counter
	authenticatedSessions   metric.Int64UpDownCounter

	// Conversation metrics
	chatExchangesTotal   metric.Int64Counter
	chatExchangeDuration metric.Float64Histogram

	// MCP Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// Callback receiver metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.backendRequestsTotal, err = meter.Int64Counter(
		"backend_requests_total",
		metric.WithDescription("Total number of requests to the assistant backend"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend_requests_total counter: %w", err)
	}

	m.backendRequestDuration, err = meter.Float64Histogram(
		"backend_request_duration_seconds",
		metric.WithDescription("Assistant backend request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend_request_duration_seconds histogram: %w", err)
	}

	m.credentialWipesTotal, err = meter.Int64Counter(
		"credential_wipes_total",
		metric.WithDescription("Total number of times the stored credential was discarded"),
		metric.WithUnit("{wipe}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential_wipes_total counter: %w", err)
	}

	m.sessionTransitionsTotal, err = meter.Int64Counter(
		"session_transitions_total",
		metric.WithDescription("Total number of session status transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session_transitions_total counter: %w", err)
	}

	m.authenticatedSessions, err = meter.Int64UpDownCounter(
		"authenticated_sessions",
		metric.WithDescription("Number of sessions currently authenticated"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticated_sessions gauge: %w", err)
	}

	m.chatExchangesTotal, err = meter.Int64Counter(
		"chat_exchanges_total",
		metric.WithDescription("Total number of chat exchanges by outcome"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat_exchanges_total counter: %w", err)
	}

	m.chatExchangeDuration, err = meter.Float64Histogram(
		"chat_exchange_duration_seconds",
		metric.WithDescription("Chat exchange duration in seconds, placeholder to reconciliation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 20.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat_exchange_duration_seconds histogram: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests served by the callback receiver"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordBackendRequest records one gateway call.
//
// Parameters:
//   - endpoint: logical endpoint name (e.g. "auth.verify", "chat.message")
//   - status: "success" or "error"
//   - errorKind: the failure classification, empty on success
//   - duration: time from request start to classified outcome
func (m *Metrics) RecordBackendRequest(ctx context.Context, endpoint, status, errorKind string, duration time.Duration) {
	if m == nil || m.backendRequestsTotal == nil || m.backendRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrEndpoint, endpoint),
		attribute.String(attrStatus, status),
	}
	if errorKind != "" {
		attrs = append(attrs, attribute.String(attrErrorKind, errorKind))
	}

	m.backendRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.backendRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordCredentialWipe records that the stored credential was discarded.
// Reason should be one of WipeAuthError, WipeLogout, WipeExplicit.
func (m *Metrics) RecordCredentialWipe(ctx context.Context, reason string) {
	if m == nil || m.credentialWipesTotal == nil {
		return
	}

	m.credentialWipesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// RecordSessionTransition records a session status change and keeps the
// authenticated_sessions gauge in step with it.
func (m *Metrics) RecordSessionTransition(ctx context.Context, from, to string, authenticatedDelta int64) {
	if m == nil || m.sessionTransitionsTotal == nil {
		return
	}

	m.sessionTransitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrFrom, from),
		attribute.String(attrTo, to),
	))

	if authenticatedDelta != 0 && m.authenticatedSessions != nil {
		m.authenticatedSessions.Add(ctx, authenticatedDelta)
	}
}

// RecordChatExchange records the outcome of one chat turn.
//
// Parameters:
//   - status: "success", "error", "rejected" or "stale"
//   - action: the response action tag, already bounded with BoundedLabel
//   - duration: time taken for the exchange
func (m *Metrics) RecordChatExchange(ctx context.Context, status, action string, duration time.Duration) {
	if m == nil || m.chatExchangesTotal == nil || m.chatExchangeDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, status),
	}
	if action != "" {
		attrs = append(attrs, attribute.String(attrAction, action))
	}

	m.chatExchangesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.chatExchangeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	m.RecordToolInvocationWithUser(ctx, toolName, status, "", duration)
}

// RecordToolInvocationWithUser records an MCP tool invocation and, when
// detailed labels are enabled, the email domain of the signed-in user.
func (m *Metrics) RecordToolInvocationWithUser(ctx context.Context, toolName, status, userEmail string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	if m.detailedLabels && userEmail != "" {
		attrs = append(attrs, attribute.String(attrDomain, ExtractUserDomain(userEmail)))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
