package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jingjing529/ai-calendar-agent/internal/calendar"
	"github.com/jingjing529/ai-calendar-agent/internal/chat"
	"github.com/jingjing529/ai-calendar-agent/internal/dispatch"
	"github.com/jingjing529/ai-calendar-agent/internal/google"
	"github.com/jingjing529/ai-calendar-agent/internal/instrumentation"
)

// ErrShutdown is returned once the server context has been shut down.
var ErrShutdown = errors.New("server is shutting down")

// ServerContext holds the long-lived dependencies of the MCP server: the
// signed-in calendar, the chat runner and the dispatcher options.
type ServerContext struct {
	ctx             context.Context
	cancel          context.CancelFunc
	tokens          google.TokenProvider
	calendarOptions []calendar.Option
	calendar        CalendarService
	runner          *chat.Runner
	dispatchOptions []dispatch.Option
	metrics         *instrumentation.Metrics
	audit           *instrumentation.AuditLogger
	defaultTimezone string
	mu              sync.RWMutex
	lastEvent       *calendar.EventRef
	shutdown        bool
}

// ServerContextOption configures a ServerContext.
type ServerContextOption func(*ServerContext)

// WithCalendarOptions sets the options used when the calendar client is created.
func WithCalendarOptions(opts ...calendar.Option) ServerContextOption {
	return func(sc *ServerContext) { sc.calendarOptions = opts }
}

// WithDispatchOptions sets the options of dispatchers handed out by Dispatcher.
func WithDispatchOptions(opts ...dispatch.Option) ServerContextOption {
	return func(sc *ServerContext) { sc.dispatchOptions = opts }
}

// WithInstrumentation sets the metrics and audit logger used by tool handlers.
func WithInstrumentation(m *instrumentation.Metrics, audit *instrumentation.AuditLogger) ServerContextOption {
	return func(sc *ServerContext) {
		sc.metrics = m
		sc.audit = audit
	}
}

// WithCalendar installs a ready calendar, skipping token lookup.
func WithCalendar(cal CalendarService) ServerContextOption {
	return func(sc *ServerContext) { sc.calendar = cal }
}

// WithDefaultTimezone sets the timezone used when a tool call names none.
func WithDefaultTimezone(tz string) ServerContextOption {
	return func(sc *ServerContext) { sc.defaultTimezone = tz }
}

// NewServerContext creates a new server context. The calendar client is
// created on first use so the server starts before the user has signed in.
func NewServerContext(ctx context.Context, tokens google.TokenProvider, runner *chat.Runner, opts ...ServerContextOption) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		tokens: tokens,
		runner: runner,
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Runner returns the chat runner; it is nil when no agent is configured.
func (sc *ServerContext) Runner() *chat.Runner {
	return sc.runner
}

// Metrics returns the metrics recorder, or nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger, or nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.audit
}

// DefaultTimezone returns the configured fallback timezone.
func (sc *ServerContext) DefaultTimezone() string {
	return sc.defaultTimezone
}

// LastEvent returns the event the last applied action created or updated.
func (sc *ServerContext) LastEvent() *calendar.EventRef {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastEvent
}

// SetLastEvent remembers ref for follow-up messages; nil forgets it.
func (sc *ServerContext) SetLastEvent(ref *calendar.EventRef) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.lastEvent = ref
}

// Calendar returns the calendar client, creating and caching it on first use.
func (sc *ServerContext) Calendar() (CalendarService, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil, ErrShutdown
	}
	if sc.calendar != nil {
		return sc.calendar, nil
	}
	if sc.tokens == nil {
		return nil, google.ErrNoToken
	}

	ts, err := sc.tokens.TokenSource(sc.ctx)
	if err != nil {
		return nil, err
	}
	client, err := calendar.NewClient(sc.ctx, ts, sc.calendarOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar client: %w", err)
	}
	sc.calendar = client
	return client, nil
}

// Dispatcher returns a dispatcher over the calendar.
func (sc *ServerContext) Dispatcher() (*dispatch.Dispatcher, error) {
	cal, err := sc.Calendar()
	if err != nil {
		return nil, err
	}
	opts := append([]dispatch.Option{dispatch.WithSource(dispatch.SourceMCP)}, sc.dispatchOptions...)
	return dispatch.New(cal, opts...), nil
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
