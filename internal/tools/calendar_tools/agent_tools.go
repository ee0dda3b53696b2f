package calendar_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jingjing529/ai-calendar-agent/internal/action"
	"github.com/jingjing529/ai-calendar-agent/internal/chat"
	"github.com/jingjing529/ai-calendar-agent/internal/prompt"
	"github.com/jingjing529/ai-calendar-agent/internal/server"
	"github.com/jingjing529/ai-calendar-agent/internal/stream"
	"github.com/jingjing529/ai-calendar-agent/internal/tools/common"
)

// RegisterAgentTools registers the tools that talk to the agent or parse its
// replies. None of them change the calendar.
func RegisterAgentTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	chatTool := mcp.NewTool("agent_chat",
		mcp.WithDescription("Send a message to the calendar agent. Returns the reply text followed by the proposed action after a "+stream.Marker+" line. The action is not applied."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The user's request, e.g. 'move my dentist appointment to Friday'"),
		),
		mcp.WithString("timezone",
			mcp.Description("IANA timezone of the user (e.g., 'America/New_York')"),
		),
	)

	s.AddTool(chatTool, common.InstrumentedToolHandler("agent_chat", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleChat(ctx, request, sc)
		}))

	decodeTool := mcp.NewTool("agent_decode_reply",
		mcp.WithDescription("Split a complete agent reply into its message text and decoded action"),
		mcp.WithString("reply",
			mcp.Required(),
			mcp.Description("The full reply text, including any "+stream.Marker+" section"),
		),
	)

	s.AddTool(decodeTool, common.InstrumentedToolHandler("agent_decode_reply", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDecodeReply(ctx, request)
		}))

	return nil
}

func handleChat(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	message := strings.TrimSpace(getStringArg(args, "message"))
	if message == "" {
		return mcp.NewToolResultError("message is required"), nil
	}

	runner := sc.Runner()
	if runner == nil {
		return mcp.NewToolResultError("No agent is configured. Set AGENT_URL or agent.url in the config file."), nil
	}

	turn := chat.Turn{
		Message:   message,
		Timezone:  prompt.ResolveTimezone(getStringArg(args, "timezone"), sc.DefaultTimezone()),
		LastEvent: sc.LastEvent(),
	}
	// Without a token the agent still answers, just without event context.
	if cal, err := sc.Calendar(); err == nil {
		turn.Events = cal
	}

	var reply strings.Builder
	outcome, err := runner.Run(ctx, turn, func(fragment string) error {
		reply.WriteString(fragment)
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Agent request failed: %v", err)), nil
	}

	if outcome.Stream.MarkerSeen {
		trailer, err := action.Encode(outcome.Trailer())
		if err != nil {
			return nil, fmt.Errorf("failed to encode action: %w", err)
		}
		reply.WriteString("\n" + stream.Marker + "\n" + trailer)
	}
	return mcp.NewToolResultText(reply.String()), nil
}

type decodedReply struct {
	Message string          `json:"message"`
	Action  json.RawMessage `json:"action"`
}

func handleDecodeReply(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	reply, ok := args["reply"].(string)
	if !ok {
		return mcp.NewToolResultError("reply is required"), nil
	}

	message, metadata := stream.SplitString(reply)
	desc, ok := action.Decode(metadata)
	if !ok {
		desc = action.Unknown()
	}
	encoded, err := action.Encode(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action: %w", err)
	}

	return jsonResult(decodedReply{Message: message, Action: json.RawMessage(encoded)})
}
