package instrumentation

import (
	"context"
	"log/slog"
	"time"
)

// ToolInvocation is one audited MCP tool call. UserEmail is PII: the audit
// logger reduces it to its domain unless configured otherwise.
type ToolInvocation struct {
	Tool      string
	UserEmail string

	// ReadOnly is false for tools that send or discard mail.
	ReadOnly bool

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// StartToolInvocation starts timing a tool call. The ids of the span in ctx,
// if any, are attached. userEmail may be empty.
func StartToolInvocation(ctx context.Context, tool string, readOnly bool, userEmail string) *ToolInvocation {
	ti := &ToolInvocation{
		Tool:      tool,
		UserEmail: userEmail,
		ReadOnly:  readOnly,
		StartTime: time.Now(),
	}
	ti.TraceID, ti.SpanID = SpanIDs(ctx)
	return ti
}

// Finish stops the clock. A nil err means the call succeeded.
func (ti *ToolInvocation) Finish(err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = err == nil
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// Status returns StatusSuccess or StatusError.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

func (ti *ToolInvocation) attrs(includePII bool) []slog.Attr {
	attrs := make([]slog.Attr, 0, 8)
	attrs = append(attrs, slog.String("tool", ti.Tool))
	if includePII {
		attrs = append(attrs, slog.String("user", ti.UserEmail))
	} else {
		attrs = append(attrs, slog.String("user_domain", ExtractUserDomain(ti.UserEmail)))
	}
	attrs = append(attrs,
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
		slog.Bool("read_only", ti.ReadOnly),
	)
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID), slog.String("span_id", ti.SpanID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}
	return attrs
}

// AuditLogger writes one record per tool call: tool_executed at info level
// or tool_failed at warn level.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger returns an audit logger writing to logger, or to the default
// logger when nil.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogToolInvocation is a no-op on a nil or disabled logger.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}

	level, msg := slog.LevelInfo, "tool_executed"
	if !ti.Success {
		level, msg = slog.LevelWarn, "tool_failed"
	}
	al.logger.LogAttrs(context.Background(), level, msg, ti.attrs(al.includePII)...)
}
