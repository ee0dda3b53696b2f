package cmd

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingjing529/ai-calendar-agent/internal/server"
)

func TestGetCategoryFromToolName(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{name: "calendar_list_upcoming", expected: "Calendar Tools"},
		{name: "calendar_apply_action", expected: "Calendar Tools"},
		{name: "agent_chat", expected: "Agent Tools"},
		{name: "agent_decode_reply", expected: "Agent Tools"},
		{name: "unknown", expected: "Other"},
		{name: "", expected: "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, getCategoryFromToolName(tt.name))
		})
	}
}

func TestGenerateToolMarkdown(t *testing.T) {
	tool := mcp.NewTool("calendar_apply_action",
		mcp.WithDescription("Apply an action"),
		mcp.WithString("action", mcp.Required(), mcp.Description("Action kind")),
		mcp.WithString("eventId"),
	)

	md := generateToolMarkdown(tool)
	assert.Contains(t, md, "### calendar_apply_action")
	assert.Contains(t, md, "Apply an action")
	assert.Contains(t, md, "- `action` (required): Action kind")
	assert.Contains(t, md, "- `eventId` (optional): string parameter")
}

func TestGenerateToolsMarkdown_AllTools(t *testing.T) {
	sc := server.NewServerContext(context.Background(), nil, nil)
	t.Cleanup(func() { _ = sc.Shutdown() })

	mcpSrv, err := newMCPServer(sc, false)
	require.NoError(t, err)

	var tools []mcp.Tool
	for _, st := range mcpSrv.ListTools() {
		tools = append(tools, st.Tool)
	}

	md := generateToolsMarkdown(tools)
	assert.Contains(t, md, "- [Agent Tools](#agent-tools)")
	assert.Contains(t, md, "- [Calendar Tools](#calendar-tools)")
	for _, name := range []string{"agent_chat", "agent_decode_reply", "calendar_apply_action", "calendar_list_upcoming"} {
		assert.Contains(t, md, "### "+name)
	}
}
