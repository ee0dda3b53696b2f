package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	calendarv3 "google.golang.org/api/calendar/v3"

	"github.com/jingjing529/ai-calendar-agent/internal/action"
	"github.com/jingjing529/ai-calendar-agent/internal/calendar"
	"github.com/jingjing529/ai-calendar-agent/internal/dispatch"
	"github.com/jingjing529/ai-calendar-agent/internal/logging"
	"github.com/jingjing529/ai-calendar-agent/internal/session"
)

const maxActionBodyBytes = 1 << 20

type eventsResponse struct {
	Success bool                 `json:"success"`
	Events  []calendar.EventView `json:"events"`
}

// handleCalendarEvents lists the next month of events for display.
func (s *Server) handleCalendarEvents(w http.ResponseWriter, r *http.Request) {
	logger := s.loggerFor(r)

	cal, err := s.calendarFor(r)
	if errors.Is(err, session.ErrNoSession) {
		writeError(w, http.StatusUnauthorized, "No Google access token")
		return
	}
	if err != nil {
		logger.Error("failed to open calendar", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch events")
		return
	}

	now := s.now()
	items, err := cal.ListUpcoming(r.Context(), now, now.AddDate(0, 1, 0))
	if err != nil {
		logger.Error("failed to fetch events", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch events")
		return
	}

	writeJSON(w, http.StatusOK, eventsResponse{Success: true, Events: calendar.ToViews(items)})
}

// actionRequest is the body of POST /api/calendar: the descriptor a client
// decoded from a reply.
type actionRequest struct {
	Action  string          `json:"action"`
	EventID *string         `json:"eventId"`
	Event   json.RawMessage `json:"event"`
}

func (req actionRequest) descriptor() *action.Descriptor {
	d := &action.Descriptor{Action: action.Kind(req.Action)}
	if req.EventID != nil && *req.EventID != "" {
		id := *req.EventID
		d.EventID = &id
	}
	if raw := bytes.TrimSpace(req.Event); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		d.Event = raw
	}
	return d
}

type actionResponse struct {
	Success bool              `json:"success"`
	Action  action.Kind       `json:"action"`
	Event   *calendarv3.Event `json:"event,omitempty"`
	EventID string            `json:"eventId"`
}

// handleCalendarAction applies one insert, edit or delete to the user's
// calendar and remembers the touched event for follow-up messages.
func (s *Server) handleCalendarAction(w http.ResponseWriter, r *http.Request) {
	logger := s.loggerFor(r)

	cal, err := s.calendarFor(r)
	if errors.Is(err, session.ErrNoSession) {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	if err != nil {
		logger.Error("failed to open calendar", logging.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req actionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxActionBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	desc := req.descriptor()
	if !desc.Action.Valid() {
		writeJSON(w, http.StatusOK, apiResponse{Success: false, Error: "Unknown action"})
		return
	}

	res, err := s.dispatcher(cal).Dispatch(r.Context(), desc)
	if err != nil {
		status, msg := actionError(desc.Action, err)
		logger.Warn("calendar action failed",
			logging.Action(string(desc.Action)), logging.EventID(desc.ID()), logging.Err(err))
		writeError(w, status, msg)
		return
	}

	switch res.Action {
	case action.KindInsert, action.KindEdit:
		if err := s.sessions.SetLastEvent(w, res.LastEvent); err != nil {
			logger.Warn("failed to remember last event", logging.Err(err))
		}
	case action.KindDelete:
		if last := s.sessions.LastEvent(r); last != nil && last.ID == res.EventID {
			s.sessions.ClearLastEvent(w)
		}
	}

	writeJSON(w, http.StatusOK, actionResponse{
		Success: true,
		Action:  res.Action,
		Event:   res.Event,
		EventID: res.EventID,
	})
}

// actionError maps a dispatch failure to a status and client message.
func actionError(kind action.Kind, err error) (int, string) {
	switch {
	case errors.Is(err, dispatch.ErrMissingEventID):
		return http.StatusBadRequest, "Missing eventId for " + string(kind)
	case errors.Is(err, dispatch.ErrMissingEvent) && kind == action.KindEdit:
		return http.StatusBadRequest, "No event object provided for edit"
	case errors.Is(err, dispatch.ErrMissingEvent):
		return http.StatusBadRequest, "No event provided for " + string(kind)
	case errors.Is(err, calendar.ErrInvalidEvent):
		return http.StatusBadRequest, err.Error()
	}
	if status := calendar.APIStatus(err); status >= 400 && status < 500 {
		return status, err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}
