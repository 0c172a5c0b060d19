package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/server"
)

func TestInstrumentedToolHandler_Success(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t, false, server.Options{})

	called := false
	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		return mcp.NewToolResultText("success"), nil
	}

	wrapped := InstrumentedToolHandler("test_tool", true, sc, handler)
	result, err := wrapped(ctx, mcp.CallToolRequest{})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
	if result == nil {
		t.Error("expected result, got nil")
	}
}

func TestInstrumentedToolHandler_Error(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t, false, server.Options{})

	expectedErr := errors.New("test error")
	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, expectedErr
	}

	wrapped := InstrumentedToolHandler("test_tool", true, sc, handler)
	_, err := wrapped(ctx, mcp.CallToolRequest{})

	if err != expectedErr {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
}

func TestInstrumentedToolHandler_ErrorResult(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t, false, server.Options{})

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("error message"), nil
	}

	wrapped := InstrumentedToolHandler("test_tool", true, sc, handler)
	result, err := wrapped(ctx, mcp.CallToolRequest{})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result == nil || !result.IsError {
		t.Error("expected result.IsError to be true")
	}
}

func TestInstrumentedToolHandler_WithMetricsAndAudit(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	audit := instrumentation.NewAuditLogger(
		slog.New(slog.NewJSONHandler(&buf, nil)),
		instrumentation.AuditLoggingConfig{Enabled: true},
	)
	sc := newTestServerContext(t, true, server.Options{
		Instrumentation: newTestProvider(t),
		AuditLogger:     audit,
	})

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("sent"), nil
	}

	wrapped := InstrumentedToolHandler("mail_send_reply", false, sc, handler)
	if _, err := wrapped(ctx, mcp.CallToolRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"tool_executed"`, `"tool":"mail_send_reply"`, `"user_domain":"example.com"`, `"read_only":false`} {
		if !strings.Contains(out, want) {
			t.Errorf("audit log missing %s: %s", want, out)
		}
	}
	if strings.Contains(out, "jane@example.com") {
		t.Errorf("audit log leaked the full email: %s", out)
	}
}

func TestSessionUserEmail(t *testing.T) {
	if got := SessionUserEmail(newTestServerContext(t, false, server.Options{})); got != "" {
		t.Errorf("SessionUserEmail() = %q before sign-in, want empty", got)
	}
	if got := SessionUserEmail(newTestServerContext(t, true, server.Options{})); got != "jane@example.com" {
		t.Errorf("SessionUserEmail() = %q, want jane@example.com", got)
	}
}

func TestInstrumentedToolHandler_ErrorResultIsAuditedAsFailure(t *testing.T) {
	var buf bytes.Buffer
	sc := newTestServerContext(t, false, server.Options{
		AuditLogger: instrumentation.NewAuditLogger(
			slog.New(slog.NewJSONHandler(&buf, nil)),
			instrumentation.AuditLoggingConfig{Enabled: true},
		),
	})

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("Not signed in."), nil
	}
	if _, err := InstrumentedToolHandler("mail_list", true, sc, handler)(context.Background(), mcp.CallToolRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"tool_failed"`, `"error":"tool returned an error result"`, `"user_domain":"unknown"`} {
		if !strings.Contains(out, want) {
			t.Errorf("audit log missing %s: %s", want, out)
		}
	}
}
