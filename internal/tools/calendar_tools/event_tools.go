package calendar_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jingjing529/ai-calendar-agent/internal/action"
	"github.com/jingjing529/ai-calendar-agent/internal/calendar"
	"github.com/jingjing529/ai-calendar-agent/internal/chat"
	"github.com/jingjing529/ai-calendar-agent/internal/dispatch"
	"github.com/jingjing529/ai-calendar-agent/internal/server"
	"github.com/jingjing529/ai-calendar-agent/internal/tools/common"
)

const maxListDays = 365

// RegisterEventTools registers the event listing and mutation tools.
func RegisterEventTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	// List upcoming events tool (read-only, always available)
	listUpcomingTool := mcp.NewTool("calendar_list_upcoming",
		mcp.WithDescription("List upcoming events on the primary calendar, earliest first"),
		mcp.WithNumber("days",
			mcp.Description(fmt.Sprintf("How many days ahead to look (default: %d, max: %d)", chat.DefaultContextDays, maxListDays)),
		),
	)

	s.AddTool(listUpcomingTool, common.InstrumentedToolHandler("calendar_list_upcoming", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListUpcoming(ctx, request, sc)
		}))

	if !readOnly {
		applyActionTool := mcp.NewTool("calendar_apply_action",
			mcp.WithDescription("Apply an action decoded from an agent reply: insert, edit or delete an event on the primary calendar"),
			mcp.WithString("action",
				mcp.Required(),
				mcp.Description("Action kind: insert, edit or delete"),
			),
			mcp.WithString("eventId",
				mcp.Description("ID of the event to edit or delete"),
			),
			mcp.WithString("event",
				mcp.Description("Event resource as a JSON object. For edit only the given fields change."),
			),
		)

		s.AddTool(applyActionTool, common.InstrumentedToolHandler("calendar_apply_action", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleApplyAction(ctx, request, sc)
			}))
	}

	return nil
}

func handleListUpcoming(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	days := chat.DefaultContextDays
	if v, ok := args["days"].(float64); ok && v > 0 {
		days = min(int(v), maxListDays)
	}

	cal, errResult := getCalendar(sc)
	if errResult != nil {
		return errResult, nil
	}

	now := time.Now()
	items, err := cal.ListUpcoming(ctx, now, now.AddDate(0, 0, days))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list events: %v", err)), nil
	}

	if len(items) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No events in the next %d day(s).", days)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d event(s) in the next %d day(s):\n\n", len(items), days)
	for i, view := range calendar.ToViews(items) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, view.Title)
		fmt.Fprintf(&b, "   ID: %s\n", view.ID)
		if view.Start != "" {
			fmt.Fprintf(&b, "   Start: %s\n", view.Start)
		}
		if view.End != "" {
			fmt.Fprintf(&b, "   End: %s\n", view.End)
		}
		if view.Description != "" {
			fmt.Fprintf(&b, "   Description: %s\n", view.Description)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

type applyResult struct {
	Action  action.Kind         `json:"action"`
	EventID string              `json:"eventId"`
	Event   *calendar.EventView `json:"event,omitempty"`
}

func handleApplyAction(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	desc := &action.Descriptor{Action: action.Kind(strings.TrimSpace(getStringArg(args, "action")))}
	if !desc.Action.Valid() {
		return mcp.NewToolResultError("Unknown action: expected insert, edit or delete"), nil
	}
	common.SetAction(ctx, string(desc.Action))

	if id := strings.TrimSpace(getStringArg(args, "eventId")); id != "" {
		desc.EventID = &id
	}
	if raw := strings.TrimSpace(getStringArg(args, "event")); raw != "" && raw != "null" {
		if !json.Valid([]byte(raw)) {
			return mcp.NewToolResultError("event must be a JSON object"), nil
		}
		desc.Event = json.RawMessage(raw)
	}

	if _, errResult := getCalendar(sc); errResult != nil {
		return errResult, nil
	}
	d, err := sc.Dispatcher()
	if err != nil {
		return nil, err
	}

	res, err := d.Dispatch(ctx, desc)
	if err != nil {
		if dispatch.IsValidationError(err) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to %s event: %v", desc.Action, err)), nil
	}

	switch res.Action {
	case action.KindInsert, action.KindEdit:
		sc.SetLastEvent(res.LastEvent)
	case action.KindDelete:
		if last := sc.LastEvent(); last != nil && last.ID == res.EventID {
			sc.SetLastEvent(nil)
		}
	}

	out := applyResult{Action: res.Action, EventID: res.EventID}
	if res.Event != nil {
		view := calendar.ToView(res.Event)
		out.Event = &view
	}
	return jsonResult(out)
}
