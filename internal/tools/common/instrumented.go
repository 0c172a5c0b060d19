package common

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/server"
)

// ToolHandler is the mcp-go tool handler signature.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

var errToolResult = errors.New("tool returned an error result")

// InstrumentedToolHandler wraps a tool handler with a span, metrics and audit
// logging. readOnly is false for tools that send or discard mail.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", true, sc, handler))
func InstrumentedToolHandler(toolName string, readOnly bool, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := instrumentation.StartToolSpan(ctx, toolName, readOnly)
		defer span.End()

		user := SessionUserEmail(sc)
		invocation := instrumentation.StartToolInvocation(ctx, toolName, readOnly, user)

		result, err := handler(ctx, request)

		failure := err
		if failure == nil && result != nil && result.IsError {
			failure = errToolResult
		}
		invocation.Finish(failure)
		instrumentation.SetSpanStatus(span, failure)

		// Both are nil-safe when instrumentation is not configured.
		if user != "" {
			sc.Metrics().RecordToolInvocationWithUser(ctx, toolName, invocation.Status(), user, invocation.Duration)
		} else {
			sc.Metrics().RecordToolInvocation(ctx, toolName, invocation.Status(), invocation.Duration)
		}
		sc.AuditLogger().LogToolInvocation(invocation)

		return result, err
	}
}

// SessionUserEmail returns the email of the signed-in user, or "".
func SessionUserEmail(sc *server.ServerContext) string {
	st := sc.Session().State()
	if st.Profile == nil {
		return ""
	}
	return st.Profile.Email
}
