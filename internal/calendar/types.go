package calendar

import (
	"errors"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

// NoTitle is shown for events without a summary.
const NoTitle = "(No title)"

// EventView is the event shape served to the web client.
type EventView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Description string `json:"description,omitempty"`
	HTMLLink    string `json:"htmlLink,omitempty"`
}

// ContextEvent is the event shape given to the agent for choosing event IDs.
type ContextEvent struct {
	ID          string                  `json:"id"`
	Summary     string                  `json:"summary,omitempty"`
	Description string                  `json:"description,omitempty"`
	Start       *calendar.EventDateTime `json:"start,omitempty"`
	End         *calendar.EventDateTime `json:"end,omitempty"`
}

// EventRef identifies the last event the agent helped with.
type EventRef struct {
	ID      string `json:"eventId"`
	Summary string `json:"summary"`
	Start   string `json:"start"`
}

// ToView converts an API event for display.
func ToView(e *calendar.Event) EventView {
	if e == nil {
		return EventView{}
	}
	title := e.Summary
	if title == "" {
		title = NoTitle
	}
	return EventView{
		ID:          e.Id,
		Title:       title,
		Start:       When(e.Start),
		End:         When(e.End),
		Description: e.Description,
		HTMLLink:    e.HtmlLink,
	}
}

// ToViews converts a list of API events for display. It never returns nil.
func ToViews(events []*calendar.Event) []EventView {
	views := make([]EventView, 0, len(events))
	for _, e := range events {
		views = append(views, ToView(e))
	}
	return views
}

// ToContext converts API events for the agent prompt. It never returns nil.
func ToContext(events []*calendar.Event) []ContextEvent {
	out := make([]ContextEvent, 0, len(events))
	for _, e := range events {
		if e == nil {
			continue
		}
		out = append(out, ContextEvent{
			ID:          e.Id,
			Summary:     e.Summary,
			Description: e.Description,
			Start:       e.Start,
			End:         e.End,
		})
	}
	return out
}

// RefOf returns the reference to e, or nil if e is nil.
func RefOf(e *calendar.Event) *EventRef {
	if e == nil {
		return nil
	}
	return &EventRef{ID: e.Id, Summary: e.Summary, Start: When(e.Start)}
}

// When returns the dateTime of a timed event or the date of an all-day event.
func When(dt *calendar.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.DateTime != "" {
		return dt.DateTime
	}
	return dt.Date
}

// APIStatus returns the HTTP status of a Google API error, or 0.
func APIStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
