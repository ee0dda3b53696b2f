package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/jingjing529/ai-calendar-agent/internal/instrumentation"
)

// DefaultCalendarID is the calendar all actions apply to unless configured.
const DefaultCalendarID = "primary"

// Client wraps the Google Calendar events API for one user.
type Client struct {
	svc        *calendar.Service
	calendarID string
	metrics    *instrumentation.Metrics
}

// Option configures a Client.
type Option func(*settings)

type settings struct {
	calendarID    string
	metrics       *instrumentation.Metrics
	clientOptions []option.ClientOption
}

// WithCalendarID targets a calendar other than "primary".
func WithCalendarID(id string) Option {
	return func(s *settings) {
		if id != "" {
			s.calendarID = id
		}
	}
}

// WithMetrics records Google API metrics.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithClientOptions appends Google API client options, applied after the
// token source. Tests use it to point the client at a fake endpoint.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *settings) {
		s.clientOptions = append(s.clientOptions, opts...)
	}
}

// NewClient creates a Calendar client authenticated by ts.
func NewClient(ctx context.Context, ts oauth2.TokenSource, opts ...Option) (*Client, error) {
	if ts == nil {
		return nil, fmt.Errorf("token source cannot be nil")
	}

	s := settings{calendarID: DefaultCalendarID}
	for _, opt := range opts {
		opt(&s)
	}

	clientOpts := append([]option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}, s.clientOptions...)
	svc, err := calendar.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{
		svc:        svc,
		calendarID: s.calendarID,
		metrics:    s.metrics,
	}, nil
}

// NewClientWithToken creates a Calendar client from a bare access token, as
// stored in the browser session.
func NewClientWithToken(ctx context.Context, accessToken string, opts ...Option) (*Client, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token cannot be empty")
	}
	return NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}), opts...)
}

// CalendarID returns the calendar this client operates on.
func (c *Client) CalendarID() string {
	return c.calendarID
}

// ListUpcoming returns single events starting between from and to, ordered by
// start time, following every result page.
func (c *Client) ListUpcoming(ctx context.Context, from, to time.Time) ([]*calendar.Event, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationList)
	defer span.End()
	start := time.Now()

	call := c.svc.Events.List(c.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250)

	var items []*calendar.Event
	err := call.Pages(ctx, func(page *calendar.Events) error {
		items = append(items, page.Items...)
		return nil
	})
	c.record(ctx, span, instrumentation.OperationList, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	span.SetAttributes(attribute.Int("calendar.event_count", len(items)))
	return items, nil
}

// Insert creates an event from a Google Calendar event resource in JSON form.
func (c *Client) Insert(ctx context.Context, raw json.RawMessage) (*calendar.Event, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationInsert)
	defer span.End()
	start := time.Now()

	event, err := decodeEvent(raw)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	created, err := c.svc.Events.Insert(c.calendarID, event).Context(ctx).Do()
	c.record(ctx, span, instrumentation.OperationInsert, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	span.SetAttributes(attribute.String(instrumentation.SpanAttrEventID, created.Id))
	return created, nil
}

// Patch applies a partial event resource to the event with the given ID.
// Only fields present in raw are changed.
func (c *Client) Patch(ctx context.Context, eventID string, raw json.RawMessage) (*calendar.Event, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationPatch,
		attribute.String(instrumentation.SpanAttrEventID, eventID))
	defer span.End()
	start := time.Now()

	event, err := decodeEvent(raw)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	updated, err := c.svc.Events.Patch(c.calendarID, eventID, event).Context(ctx).Do()
	c.record(ctx, span, instrumentation.OperationPatch, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	return updated, nil
}

// Delete removes the event with the given ID.
func (c *Client) Delete(ctx context.Context, eventID string) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationDelete,
		attribute.String(instrumentation.SpanAttrEventID, eventID))
	defer span.End()
	start := time.Now()

	err := c.svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	c.record(ctx, span, instrumentation.OperationDelete, start, err)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

func (c *Client) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, operation, status, time.Since(start))
}

// ErrInvalidEvent is returned for event payloads that are not event resources.
var ErrInvalidEvent = errors.New("invalid event payload")

func decodeEvent(raw json.RawMessage) (*calendar.Event, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidEvent)
	}
	var event calendar.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("%w: failed to decode event payload: %w", ErrInvalidEvent, err)
	}
	return &event, nil
}
