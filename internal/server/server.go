package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/jingjing529/ai-calendar-agent/internal/calendar"
	"github.com/jingjing529/ai-calendar-agent/internal/chat"
	"github.com/jingjing529/ai-calendar-agent/internal/dispatch"
	"github.com/jingjing529/ai-calendar-agent/internal/instrumentation"
	"github.com/jingjing529/ai-calendar-agent/internal/session"
)

// DefaultSuccessPath is where the browser lands after sign-in.
const DefaultSuccessPath = "/success"

// CalendarService is the calendar surface the HTTP API needs.
// *calendar.Client implements it.
type CalendarService interface {
	chat.EventLister
	dispatch.EventService
}

// CalendarFactory opens a calendar for the signed-in user's access token.
type CalendarFactory func(ctx context.Context, accessToken string) (CalendarService, error)

// NewCalendarFactory returns a factory backed by the Google Calendar API.
func NewCalendarFactory(opts ...calendar.Option) CalendarFactory {
	return func(ctx context.Context, accessToken string) (CalendarService, error) {
		client, err := calendar.NewClientWithToken(ctx, accessToken, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// Config holds the dependencies of the web server.
type Config struct {
	// OAuth is the Google OAuth client used for browser sign-in.
	OAuth *oauth2.Config
	// Sessions reads and writes session cookies.
	Sessions *session.Manager
	// Runner drives chat turns for /api/message.
	Runner *chat.Runner
	// Calendars opens the user's calendar.
	Calendars CalendarFactory
	// DispatchOptions configure the per-request dispatcher.
	DispatchOptions []dispatch.Option

	// FrontendURL prefixes sign-in redirects when the web client is
	// served from another origin.
	FrontendURL string
	// SuccessPath is the post-login landing path.
	SuccessPath string
	// DefaultTimezone is used when a client sends none.
	DefaultTimezone string

	AllowedOrigins []string
	RateLimit      RateLimitConfig

	Metrics *instrumentation.Metrics
	// Tracing wraps the router with otelhttp spans.
	Tracing bool
	Logger  *slog.Logger
	// Health serves the probe endpoints; nil disables them.
	Health *HealthChecker
}

// Server is the web API for the calendar agent.
type Server struct {
	oauth           *oauth2.Config
	sessions        *session.Manager
	runner          *chat.Runner
	calendars       CalendarFactory
	dispatchOptions []dispatch.Option
	frontendURL     string
	successPath     string
	defaultTimezone string
	allowedOrigins  []string
	limiter         *RateLimiter
	metrics         *instrumentation.Metrics
	tracing         bool
	logger          *slog.Logger
	health          *HealthChecker
	now             func() time.Time
}

// New validates cfg and creates a Server.
func New(cfg Config) (*Server, error) {
	var errs []error
	if cfg.OAuth == nil {
		errs = append(errs, errors.New("oauth config is required"))
	}
	if cfg.Sessions == nil {
		errs = append(errs, errors.New("session manager is required"))
	}
	if cfg.Runner == nil {
		errs = append(errs, errors.New("chat runner is required"))
	}
	if cfg.Calendars == nil {
		errs = append(errs, errors.New("calendar factory is required"))
	}
	if cfg.FrontendURL != "" {
		if u, err := url.Parse(cfg.FrontendURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid frontend URL %q", cfg.FrontendURL))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	s := &Server{
		oauth:           cfg.OAuth,
		sessions:        cfg.Sessions,
		runner:          cfg.Runner,
		calendars:       cfg.Calendars,
		dispatchOptions: cfg.DispatchOptions,
		frontendURL:     strings.TrimRight(cfg.FrontendURL, "/"),
		successPath:     cfg.SuccessPath,
		defaultTimezone: cfg.DefaultTimezone,
		allowedOrigins:  cfg.AllowedOrigins,
		metrics:         cfg.Metrics,
		tracing:         cfg.Tracing,
		logger:          cfg.Logger,
		health:          cfg.Health,
		now:             time.Now,
	}
	if s.successPath == "" {
		s.successPath = DefaultSuccessPath
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if cfg.RateLimit.Enabled() {
		s.limiter = NewRateLimiter(cfg.RateLimit)
	}
	return s, nil
}

// Close stops background work.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	if len(s.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(s.recordMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/auth/google", s.handleAuthStart)
		r.Get("/auth/google/callback", s.handleAuthCallback)
		r.Post("/logout", s.handleLogout)
		r.Get("/calendar-events", s.handleCalendarEvents)
		r.Post("/calendar", s.handleCalendarAction)
		r.With(s.rateLimit).Post("/message", s.handleMessage)
	})

	if s.health != nil {
		s.health.RegisterHealthEndpoints(r)
	}

	if !s.tracing {
		return r
	}
	return otelhttp.NewHandler(r, "calendar-agent",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
}

// dispatcher creates a dispatcher for one request's calendar.
func (s *Server) dispatcher(cal CalendarService) *dispatch.Dispatcher {
	opts := append([]dispatch.Option{dispatch.WithSource(dispatch.SourceWeb)}, s.dispatchOptions...)
	return dispatch.New(cal, opts...)
}

// calendarFor opens the calendar of the signed-in user.
func (s *Server) calendarFor(r *http.Request) (CalendarService, error) {
	token, err := s.sessions.AccessToken(r)
	if err != nil {
		return nil, err
	}
	return s.calendars(r.Context(), token)
}

// redirectTarget resolves path against the frontend URL.
func (s *Server) redirectTarget(path string) string {
	return s.frontendURL + path
}

// NewHTTPServer returns an http.Server for h. Replies stream for as long as
// the agent writes, so no write timeout is set.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
