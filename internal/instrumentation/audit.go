package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ToolInvocation captures one MCP tool call for audit logging.
type ToolInvocation struct {
	Tool string

	// Action is set when the tool applied a calendar action.
	Action string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewToolInvocation creates a new ToolInvocation with timing started.
// Call Complete when the tool finishes.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithAction records the calendar action applied by the tool.
func (ti *ToolInvocation) WithAction(action string) *ToolInvocation {
	ti.Action = action
	return ti
}

// WithSpanContext copies the trace context of the span in ctx.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	ti.TraceID, ti.SpanID = spanIDs(ctx)
	return ti
}

// Complete marks the invocation as finished and computes its duration.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// CompleteWithError marks the invocation as failed.
func (ti *ToolInvocation) CompleteWithError(err error) *ToolInvocation {
	return ti.Complete(false, err)
}

// CompleteSuccess marks the invocation as successful.
func (ti *ToolInvocation) CompleteSuccess() *ToolInvocation {
	return ti.Complete(true, nil)
}

// Status returns "success" or "error".
func (ti *ToolInvocation) Status() string {
	return statusOf(ti.Success)
}

// LogAttrs returns slog attributes for the invocation.
func (ti *ToolInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	if ti.Action != "" {
		attrs = append(attrs, slog.String("action", ti.Action))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}
	return attrs
}

// ActionRecord captures one dispatched calendar action.
type ActionRecord struct {
	// Source names the surface that dispatched the action (web, cli, mcp).
	Source  string
	Action  string
	EventID string
	// Summary is the event title; it is user content and only logged on request.
	Summary string

	Duration time.Duration
	Success  bool
	Error    string

	TraceID string
	SpanID  string
}

// Status returns "success" or "error".
func (ar *ActionRecord) Status() string {
	return statusOf(ar.Success)
}

// LogAttrs returns slog attributes for the record. Summary is included only
// when withDetails is set.
func (ar *ActionRecord) LogAttrs(withDetails bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", ar.Action),
		slog.Duration("duration", ar.Duration),
		slog.Bool("success", ar.Success),
	}
	if ar.Source != "" {
		attrs = append(attrs, slog.String("source", ar.Source))
	}
	if ar.EventID != "" {
		attrs = append(attrs, slog.String("event_id", ar.EventID))
	}
	if withDetails && ar.Summary != "" {
		attrs = append(attrs, slog.String("summary", ar.Summary))
	}
	if ar.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ar.TraceID))
	}
	if ar.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ar.SpanID))
	}
	if ar.Error != "" {
		attrs = append(attrs, slog.String("error", ar.Error))
	}
	return attrs
}

// AuditLogger writes structured audit records for tool calls and calendar actions.
type AuditLogger struct {
	logger         *slog.Logger
	includeDetails bool
	enabled        bool
}

// NewAuditLogger creates an enabled AuditLogger that omits event details.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates an AuditLogger from configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:         logger,
		includeDetails: config.IncludeEventDetails,
		enabled:        config.Enabled,
	}
}

// LogToolInvocation logs a finished tool invocation.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}

	level := slog.LevelInfo
	msg := "tool_executed"
	if !ti.Success {
		level, msg = slog.LevelWarn, "tool_failed"
	}
	al.logger.LogAttrs(context.Background(), level, msg, ti.LogAttrs()...)
}

// LogAction logs a dispatched calendar action.
func (al *AuditLogger) LogAction(ctx context.Context, ar *ActionRecord) {
	if al == nil || !al.enabled {
		return
	}
	if ar.TraceID == "" {
		ar.TraceID, ar.SpanID = spanIDs(ctx)
	}

	level := slog.LevelInfo
	msg := "calendar_action_applied"
	if !ar.Success {
		level, msg = slog.LevelWarn, "calendar_action_failed"
	}
	al.logger.LogAttrs(ctx, level, msg, ar.LogAttrs(al.includeDetails)...)
}

func spanIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}

func statusOf(success bool) string {
	if success {
		return StatusSuccess
	}
	return StatusError
}
