package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/jingjing529/ai-calendar-agent/internal/calendar"
	"github.com/jingjing529/ai-calendar-agent/internal/stream"
)

// DateTimeLayout renders the current time the way the agent expects it,
// e.g. "Sunday, October 18, 2026 at 3:04 PM".
const DateTimeLayout = "Monday, January 2, 2006 at 3:04 PM"

// Params are the inputs of one calendar agent prompt.
type Params struct {
	// UserMessage is the raw chat message.
	UserMessage string
	// Timezone is an IANA zone name; empty means UTC.
	Timezone string
	// Now is the current instant; zero means time.Now().
	Now time.Time
	// Events are the user's upcoming events the agent may refer to by ID.
	Events []calendar.ContextEvent
	// LastEvent is the event the agent last helped with, if any.
	LastEvent *calendar.EventRef
}

type templateData struct {
	Timezone        string
	CurrentDateTime string
	Events          string
	LastEvent       string
	Marker          string
	UserMessage     string
}

var calendarAgent = template.Must(template.New("calendar-agent").Parse(calendarAgentText))

// Build renders the calendar agent prompt.
func Build(p Params) (string, error) {
	tz := p.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("failed to load timezone %q: %w", tz, err)
	}

	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}

	events := p.Events
	if events == nil {
		events = []calendar.ContextEvent{}
	}
	eventsJSON, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode events: %w", err)
	}

	lastEvent := "null"
	if p.LastEvent != nil && p.LastEvent.ID != "" {
		b, err := json.MarshalIndent(p.LastEvent, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode last event: %w", err)
		}
		lastEvent = string(b)
	}

	var sb strings.Builder
	err = calendarAgent.Execute(&sb, templateData{
		Timezone:        tz,
		CurrentDateTime: now.In(loc).Format(DateTimeLayout),
		Events:          string(eventsJSON),
		LastEvent:       lastEvent,
		Marker:          stream.Marker,
		UserMessage:     p.UserMessage,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// ResolveTimezone returns tz if it names a known zone, otherwise fallback,
// otherwise "UTC".
func ResolveTimezone(tz, fallback string) string {
	for _, candidate := range []string{tz, fallback} {
		if candidate == "" {
			continue
		}
		if _, err := time.LoadLocation(candidate); err == nil {
			return candidate
		}
	}
	return "UTC"
}
