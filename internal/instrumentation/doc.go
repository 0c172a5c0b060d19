// Package instrumentation provides OpenTelemetry instrumentation for inboxchat.
//
// # Metrics
//
// Backend gateway:
//   - backend_requests_total: Counter of backend calls by endpoint, status and error kind
//   - backend_request_duration_seconds: Histogram of backend call durations
//   - credential_wipes_total: Counter of credential discards by reason
//
// Session and conversation:
//   - session_transitions_total: Counter of session status changes by from/to
//   - authenticated_sessions: Up/down counter of authenticated sessions
//   - chat_exchanges_total: Counter of chat turns by outcome and action tag
//   - chat_exchange_duration_seconds: Histogram of chat turn durations
//
// MCP and callback receiver:
//   - mcp_tool_invocations_total / mcp_tool_duration_seconds
//   - http_requests_total / http_request_duration_seconds
//
// # Tracing
//
// Spans are created for backend calls (backend.<endpoint>), chat turns
// (chat.exchange) and MCP tool invocations (tool.<name>).
//
// # Configuration
//
// Config is filled by the serve command from the telemetry section of the
// inboxchat config file (see internal/config). The usual OpenTelemetry
// variables OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE and
// OTEL_TRACES_SAMPLER_ARG override the file, as do INBOXCHAT_METRICS_EXPORTER,
// INBOXCHAT_TRACING_EXPORTER and INBOXCHAT_TELEMETRY_ENABLED.
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	m := provider.Metrics()
//	m.RecordBackendRequest(ctx, "chat.message", instrumentation.StatusSuccess, "", time.Since(start))
package instrumentation
