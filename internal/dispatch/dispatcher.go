package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	calendarv3 "google.golang.org/api/calendar/v3"

	"github.com/jingjing529/ai-calendar-agent/internal/action"
	"github.com/jingjing529/ai-calendar-agent/internal/calendar"
	"github.com/jingjing529/ai-calendar-agent/internal/events"
	"github.com/jingjing529/ai-calendar-agent/internal/instrumentation"
	"github.com/jingjing529/ai-calendar-agent/internal/logging"
)

// Sources of dispatched actions.
const (
	SourceWeb = "web"
	SourceCLI = "cli"
	SourceMCP = "mcp"
)

var (
	// ErrMissingEvent is returned when insert or edit carries no event payload.
	ErrMissingEvent = errors.New("no event provided")
	// ErrMissingEventID is returned when edit or delete carries no event ID.
	ErrMissingEventID = errors.New("missing eventId")
	// ErrUnknownAction is returned for unknown or unrecognised action kinds.
	ErrUnknownAction = errors.New("unknown action")
)

// EventService applies event mutations. *calendar.Client implements it.
type EventService interface {
	Insert(ctx context.Context, raw json.RawMessage) (*calendarv3.Event, error)
	Patch(ctx context.Context, eventID string, raw json.RawMessage) (*calendarv3.Event, error)
	Delete(ctx context.Context, eventID string) error
}

// Result describes an applied action.
type Result struct {
	Action  action.Kind
	EventID string
	// Event is the created or updated event; nil for delete.
	Event *calendarv3.Event
	// LastEvent is the event to remember for follow-up messages; nil for delete.
	LastEvent *calendar.EventRef
}

// Dispatcher applies decoded agent actions to a calendar.
type Dispatcher struct {
	svc       EventService
	source    string
	metrics   *instrumentation.Metrics
	audit     *instrumentation.AuditLogger
	publisher events.Publisher
	logger    *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSource labels audit records and events with the calling surface.
func WithSource(source string) Option {
	return func(d *Dispatcher) { d.source = source }
}

// WithMetrics records calendar action metrics.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithAuditLogger writes an audit record per action.
func WithAuditLogger(a *instrumentation.AuditLogger) Option {
	return func(d *Dispatcher) { d.audit = a }
}

// WithPublisher publishes an ActionEvent per action.
func WithPublisher(p events.Publisher) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.publisher = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Dispatcher over svc.
func New(svc EventService, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		svc:       svc,
		source:    SourceWeb,
		publisher: events.NopPublisher{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch validates desc and applies it.
//
// insert requires an event; edit requires an event ID and an event, which is
// sent as a partial update; delete requires an event ID. Any other kind
// returns ErrUnknownAction.
func (d *Dispatcher) Dispatch(ctx context.Context, desc *action.Descriptor) (*Result, error) {
	kind := action.KindUnknown
	if desc != nil {
		kind = desc.Action
	}

	ctx, span := instrumentation.StartDispatchSpan(ctx, string(kind))
	defer span.End()
	start := time.Now()

	res, err := d.apply(ctx, kind, desc)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	d.metrics.RecordCalendarAction(ctx, string(kind), status)

	record := &instrumentation.ActionRecord{
		Source:   d.source,
		Action:   instrumentation.NormalizeAction(string(kind)),
		EventID:  desc.ID(),
		Duration: time.Since(start),
		Success:  err == nil,
	}
	if res != nil {
		record.EventID = res.EventID
		if res.Event != nil {
			record.Summary = res.Event.Summary
		}
	}
	if err != nil {
		record.Error = err.Error()
	}
	d.audit.LogAction(ctx, record)
	d.publish(ctx, record, status)

	return res, err
}

func (d *Dispatcher) apply(ctx context.Context, kind action.Kind, desc *action.Descriptor) (*Result, error) {
	switch kind {
	case action.KindInsert:
		if !desc.HasEvent() {
			return nil, fmt.Errorf("%w for insert", ErrMissingEvent)
		}
		created, err := d.svc.Insert(ctx, desc.Event)
		if err != nil {
			return nil, err
		}
		return &Result{Action: kind, EventID: created.Id, Event: created, LastEvent: calendar.RefOf(created)}, nil

	case action.KindEdit:
		if desc.ID() == "" {
			return nil, fmt.Errorf("%w for edit", ErrMissingEventID)
		}
		if !desc.HasEvent() {
			return nil, fmt.Errorf("%w for edit", ErrMissingEvent)
		}
		updated, err := d.svc.Patch(ctx, desc.ID(), desc.Event)
		if err != nil {
			return nil, err
		}
		return &Result{Action: kind, EventID: desc.ID(), Event: updated, LastEvent: calendar.RefOf(updated)}, nil

	case action.KindDelete:
		if desc.ID() == "" {
			return nil, fmt.Errorf("%w for delete", ErrMissingEventID)
		}
		if err := d.svc.Delete(ctx, desc.ID()); err != nil {
			return nil, err
		}
		return &Result{Action: kind, EventID: desc.ID()}, nil

	default:
		return nil, ErrUnknownAction
	}
}

func (d *Dispatcher) publish(ctx context.Context, record *instrumentation.ActionRecord, status string) {
	event := events.NewActionEvent(record.Source, record.Action, status)
	event.EventID = record.EventID
	event.Summary = record.Summary
	event.Error = record.Error
	event.DurationMs = record.Duration.Milliseconds()

	// Publishing outlives request cancellation.
	pubCtx := context.WithoutCancel(ctx)
	err := d.publisher.Publish(pubCtx, event)
	d.metrics.RecordEventPublish(ctx, statusOf(err))
	if err != nil {
		d.logger.WarnContext(ctx, "failed to publish action event",
			logging.Action(record.Action), logging.Err(err))
	}
}

// IsValidationError reports whether err was caused by an incomplete descriptor
// rather than by the calendar API.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingEvent) || errors.Is(err, ErrMissingEventID)
}

func statusOf(err error) string {
	if err != nil {
		return instrumentation.StatusError
	}
	return instrumentation.StatusSuccess
}
