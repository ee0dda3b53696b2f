package calendar_tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jingjing529/ai-calendar-agent/internal/google"
	"github.com/jingjing529/ai-calendar-agent/internal/server"
)

// RegisterCalendarTools registers all calendar agent tools with the MCP
// server. Write tools are only registered when readOnly is false.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := RegisterEventTools(s, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register event tools: %w", err)
	}

	if err := RegisterAgentTools(s, sc); err != nil {
		return fmt.Errorf("failed to register agent tools: %w", err)
	}

	return nil
}

// getCalendar returns the signed-in calendar, or a tool error result
// explaining how to sign in.
func getCalendar(sc *server.ServerContext) (server.CalendarService, *mcp.CallToolResult) {
	cal, err := sc.Calendar()
	if errors.Is(err, google.ErrNoToken) {
		return nil, mcp.NewToolResultError(`Google OAuth token not found. To authorize access run:

    ai-calendar-agent login

and sign in with the Google account whose primary calendar should be used.`)
	}
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("Failed to open calendar: %v", err))
	}
	return cal, nil
}

// getStringArg returns a string argument, or "" when absent or not a string.
func getStringArg(args map[string]interface{}, name string) string {
	if v, ok := args[name].(string); ok {
		return v
	}
	return ""
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
