package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	calendarv3 "google.golang.org/api/calendar/v3"

	"github.com/jingjing529/ai-calendar-agent/internal/action"
	"github.com/jingjing529/ai-calendar-agent/internal/agent"
	"github.com/jingjing529/ai-calendar-agent/internal/calendar"
	"github.com/jingjing529/ai-calendar-agent/internal/instrumentation"
	"github.com/jingjing529/ai-calendar-agent/internal/logging"
	"github.com/jingjing529/ai-calendar-agent/internal/prompt"
	"github.com/jingjing529/ai-calendar-agent/internal/stream"
)

// DefaultContextDays is how far ahead events are loaded into the prompt.
const DefaultContextDays = 30

// Agent opens a streaming reply. *agent.Client implements it.
type Agent interface {
	Stream(ctx context.Context, req agent.Request) (*agent.Reply, error)
}

// EventLister lists upcoming events. *calendar.Client implements it.
type EventLister interface {
	ListUpcoming(ctx context.Context, from, to time.Time) ([]*calendarv3.Event, error)
}

// Turn is one user message and its conversational context.
type Turn struct {
	Message  string
	Timezone string
	// Events loads upcoming events for the prompt; nil skips them.
	Events EventLister
	// LastEvent is the event the agent last helped with.
	LastEvent *calendar.EventRef
}

// Outcome is the result of a completed turn.
type Outcome struct {
	Stream *stream.Result
	// Action is the decoded action, or nil if the reply carried none.
	Action *action.Descriptor
}

// HasAction reports whether the reply decoded to an actionable descriptor.
func (o *Outcome) HasAction() bool {
	return o != nil && o.Action != nil
}

// Trailer returns the descriptor written after the marker by relays:
// the decoded action, or the unknown action when none decoded.
func (o *Outcome) Trailer() *action.Descriptor {
	if o.HasAction() {
		return o.Action
	}
	return action.Unknown()
}

// Runner drives one chat turn: prompt, agent stream, split, decode.
type Runner struct {
	agent            Agent
	metrics          *instrumentation.Metrics
	logger           *slog.Logger
	contextDays      int
	maxMetadataBytes int
	passthrough      bool
	now              func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics records stream metrics.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithContextDays sets how many days of upcoming events the prompt includes.
func WithContextDays(days int) Option {
	return func(r *Runner) {
		if days > 0 {
			r.contextDays = days
		}
	}
}

// WithMaxMetadataBytes caps the metadata captured per reply.
func WithMaxMetadataBytes(n int) Option {
	return func(r *Runner) { r.maxMetadataBytes = n }
}

// WithPassthrough sends the user message and timezone unchanged instead of
// building a prompt. Use it when the agent endpoint is a relay that builds
// its own prompt.
func WithPassthrough() Option {
	return func(r *Runner) { r.passthrough = true }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a Runner that talks to a.
func NewRunner(a Agent, opts ...Option) *Runner {
	r := &Runner{
		agent:       a,
		logger:      slog.Default(),
		contextDays: DefaultContextDays,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes turn, passing message fragments to emit as they become safe.
// The action is decoded only after the reply completed; on any error the
// Outcome is nil.
func (r *Runner) Run(ctx context.Context, turn Turn, emit stream.EmitFunc) (*Outcome, error) {
	req, err := r.request(ctx, turn)
	if err != nil {
		return nil, err
	}

	ctx, span := instrumentation.StartSpan(ctx, "stream.split")
	defer span.End()
	start := time.Now()

	reply, err := r.agent.Stream(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", stream.ErrCanceled, ctxErr)
		} else {
			err = fmt.Errorf("%w: %w", stream.ErrUpstream, err)
		}
		r.finish(ctx, span, nil, err, start)
		return nil, err
	}
	defer func() { _ = reply.Close() }()

	var opts []stream.Option
	if r.maxMetadataBytes > 0 {
		opts = append(opts, stream.WithMaxMetadataBytes(r.maxMetadataBytes))
	}

	res, err := stream.Split(ctx, reply, emit, opts...)
	r.finish(ctx, span, res, err, start)
	if err != nil {
		return nil, err
	}

	if res.MetadataDropped {
		r.logger.WarnContext(ctx, "discarded oversized agent metadata")
	}

	out := &Outcome{Stream: res}
	if d, ok := action.Decode(res.Metadata); ok {
		out.Action = d
	} else if res.MarkerSeen && res.Metadata != "" {
		r.logger.DebugContext(ctx, "agent metadata carried no action",
			slog.String("metadata", logging.Truncate(res.Metadata, 200)))
	}
	return out, nil
}

func (r *Runner) request(ctx context.Context, turn Turn) (agent.Request, error) {
	if r.passthrough {
		return agent.Request{Message: turn.Message, Timezone: turn.Timezone}, nil
	}

	now := r.now()
	var events []calendar.ContextEvent
	if turn.Events != nil {
		items, err := turn.Events.ListUpcoming(ctx, now, now.AddDate(0, 0, r.contextDays))
		if err != nil {
			r.logger.WarnContext(ctx, "failed to load events for context", logging.Err(err))
		} else {
			events = calendar.ToContext(items)
		}
	}

	text, err := prompt.Build(prompt.Params{
		UserMessage: turn.Message,
		Timezone:    turn.Timezone,
		Now:         now,
		Events:      events,
		LastEvent:   turn.LastEvent,
	})
	if err != nil {
		return agent.Request{}, fmt.Errorf("failed to build prompt: %w", err)
	}
	return agent.Request{Message: text}, nil
}

func (r *Runner) finish(ctx context.Context, span trace.Span, res *stream.Result, err error, start time.Time) {
	outcome := Classify(err)
	var markerSeen bool
	var fragments, messageBytes int
	if res != nil {
		markerSeen = res.MarkerSeen
		fragments = res.Fragments
		messageBytes = res.MessageBytes
	}

	span.SetAttributes(instrumentation.NewSpanAttributeBuilder().
		WithStream(outcome, markerSeen, fragments).Build()...)
	if err != nil {
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	r.metrics.RecordAgentStream(ctx, outcome, markerSeen, messageBytes, time.Since(start))

	switch outcome {
	case instrumentation.OutcomeComplete:
		r.logger.DebugContext(ctx, "agent reply complete",
			logging.Outcome(outcome),
			slog.Bool("marker_seen", markerSeen),
			slog.Int("fragments", fragments))
	case instrumentation.OutcomeCanceled, instrumentation.OutcomeDownstream:
		r.logger.InfoContext(ctx, "agent reply abandoned", logging.Outcome(outcome), logging.Err(err))
	default:
		r.logger.WarnContext(ctx, "agent reply failed", logging.Outcome(outcome), logging.Err(err))
	}
}

// Classify maps a Split error to a stream outcome label.
func Classify(err error) string {
	switch {
	case err == nil:
		return instrumentation.OutcomeComplete
	case errors.Is(err, stream.ErrCanceled):
		return instrumentation.OutcomeCanceled
	case errors.Is(err, stream.ErrDownstream):
		return instrumentation.OutcomeDownstream
	default:
		return instrumentation.OutcomeUpstream
	}
}
