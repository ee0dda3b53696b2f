package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/jingjing529/ai-calendar-agent/internal/instrumentation"
	"github.com/jingjing529/ai-calendar-agent/internal/server"
)

func newContext(t *testing.T, buf *bytes.Buffer) *server.ServerContext {
	t.Helper()
	metrics, err := instrumentation.NewMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	var audit *instrumentation.AuditLogger
	if buf != nil {
		audit = instrumentation.NewAuditLogger(slog.New(slog.NewJSONHandler(buf, nil)))
	}
	sc := server.NewServerContext(context.Background(), nil, nil, server.WithInstrumentation(metrics, audit))
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func TestInstrumentedToolHandler(t *testing.T) {
	tests := []struct {
		name      string
		handler   ToolHandler
		wantErr   bool
		wantAudit string
	}{
		{
			name: "success",
			handler: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultText("ok"), nil
			},
			wantAudit: `"msg":"tool_executed"`,
		},
		{
			name: "error result",
			handler: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultError("bad input"), nil
			},
			wantAudit: `"msg":"tool_failed"`,
		},
		{
			name: "go error",
			handler: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return nil, errors.New("calendar API error")
			},
			wantErr:   true,
			wantAudit: `"error":"calendar API error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			wrapped := InstrumentedToolHandler("test_tool", newContext(t, &buf), tt.handler)

			_, err := wrapped(context.Background(), mcp.CallToolRequest{})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, buf.String(), `"tool":"test_tool"`)
			assert.Contains(t, buf.String(), tt.wantAudit)
		})
	}
}

func TestInstrumentedToolHandler_RecordsAction(t *testing.T) {
	var buf bytes.Buffer
	wrapped := InstrumentedToolHandler("calendar_apply_action", newContext(t, &buf),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			SetAction(ctx, "delete")
			return mcp.NewToolResultText("deleted"), nil
		})

	_, err := wrapped(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"action":"delete"`)
}

func TestInstrumentedToolHandler_WithoutInstrumentation(t *testing.T) {
	sc := server.NewServerContext(context.Background(), nil, nil)
	t.Cleanup(func() { _ = sc.Shutdown() })

	called := false
	wrapped := InstrumentedToolHandler("test_tool", sc, func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		SetAction(ctx, "insert")
		return mcp.NewToolResultText("ok"), nil
	})

	result, err := wrapped(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, result.IsError)
}

func TestSetAction_OutsideInvocation(t *testing.T) {
	assert.NotPanics(t, func() { SetAction(context.Background(), "edit") })
}
