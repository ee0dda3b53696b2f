package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jingjing529/ai-calendar-agent/internal/action"
	"github.com/jingjing529/ai-calendar-agent/internal/chat"
	"github.com/jingjing529/ai-calendar-agent/internal/instrumentation"
	"github.com/jingjing529/ai-calendar-agent/internal/logging"
	"github.com/jingjing529/ai-calendar-agent/internal/prompt"
	"github.com/jingjing529/ai-calendar-agent/internal/session"
	"github.com/jingjing529/ai-calendar-agent/internal/stream"
)

const maxMessageBodyBytes = 64 << 10

type messageRequest struct {
	Message  string `json:"message"`
	Timezone string `json:"timezone"`
}

// handleMessage relays one chat turn. Message text is streamed as it
// arrives; once the reply completes, the decoded action follows the marker.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := s.loggerFor(r)

	var req messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "No message provided")
		return
	}

	turn := chat.Turn{
		Message:   req.Message,
		Timezone:  prompt.ResolveTimezone(req.Timezone, s.defaultTimezone),
		LastEvent: s.sessions.LastEvent(r),
	}
	cal, err := s.calendarFor(r)
	switch {
	case err == nil:
		turn.Events = cal
	case !errors.Is(err, session.ErrNoSession):
		logger.Warn("failed to open calendar for context", logging.Err(err))
	}

	out := &relayWriter{w: w, rc: http.NewResponseController(w)}
	outcome, err := s.runner.Run(ctx, turn, out.emit)
	if err != nil {
		s.relayFailed(w, r, out, err)
		return
	}

	out.start()
	if outcome.Stream.MarkerSeen {
		trailer, err := action.Encode(outcome.Trailer())
		if err != nil {
			logger.Warn("failed to encode action trailer", logging.Err(err))
			trailer, _ = action.Encode(action.Unknown())
		}
		if err := out.emit("\n" + stream.Marker + "\n" + trailer); err != nil {
			logger.Info("client went away before the action was sent", logging.Err(err))
		}
	}
}

// relayFailed reports a failed turn. Before any byte was sent the client
// gets an error status; afterwards the connection is aborted so the client
// sees a truncated reply rather than a complete one.
func (s *Server) relayFailed(w http.ResponseWriter, r *http.Request, out *relayWriter, err error) {
	switch chat.Classify(err) {
	case instrumentation.OutcomeCanceled, instrumentation.OutcomeDownstream:
		if out.started {
			panic(http.ErrAbortHandler)
		}
		return
	}

	if out.started {
		s.loggerFor(r).Warn("agent stream failed mid-reply", logging.Err(err))
		panic(http.ErrAbortHandler)
	}

	if errors.Is(err, stream.ErrUpstream) {
		http.Error(w, "Upstream agent error", http.StatusBadGateway)
		return
	}
	s.loggerFor(r).Error("chat turn failed", logging.Err(err))
	http.Error(w, "Internal error", http.StatusInternalServerError)
}

// relayWriter writes fragments to the response and flushes each one.
type relayWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func (o *relayWriter) start() {
	if o.started {
		return
	}
	o.started = true
	h := o.w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	o.w.WriteHeader(http.StatusOK)
}

func (o *relayWriter) emit(fragment string) error {
	o.start()
	if _, err := io.WriteString(o.w, fragment); err != nil {
		return err
	}
	if err := o.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
