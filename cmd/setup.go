package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/jingjing529/ai-calendar-agent/internal/agent"
	"github.com/jingjing529/ai-calendar-agent/internal/calendar"
	"github.com/jingjing529/ai-calendar-agent/internal/chat"
	"github.com/jingjing529/ai-calendar-agent/internal/config"
	"github.com/jingjing529/ai-calendar-agent/internal/dispatch"
	"github.com/jingjing529/ai-calendar-agent/internal/events"
	"github.com/jingjing529/ai-calendar-agent/internal/google"
	"github.com/jingjing529/ai-calendar-agent/internal/instrumentation"
	"github.com/jingjing529/ai-calendar-agent/internal/logging"
)

const instrumentationShutdownTimeout = 5 * time.Second

// globalFlags holds the persistent root flags.
var globalFlags struct {
	configFile string
	envFile    string
	debug      bool
}

// loadConfig reads the .env file, the config file and the environment.
func loadConfig() (*config.Config, error) {
	config.LoadDotEnv(globalFlags.envFile)

	cfg, err := config.Load(globalFlags.configFile)
	if err != nil {
		return nil, err
	}
	if globalFlags.debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return logging.New(cfg.Log.Level, cfg.Log.Format, w)
}

// telemetry bundles the instrumentation shared by every command.
type telemetry struct {
	provider *instrumentation.Provider
	config   instrumentation.Config
	audit    *instrumentation.AuditLogger
}

func newTelemetry(ctx context.Context, logger *slog.Logger) (*telemetry, error) {
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	return &telemetry{
		provider: provider,
		config:   instrConfig,
		audit:    instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging),
	}, nil
}

func (t *telemetry) metrics() *instrumentation.Metrics {
	if !t.provider.Enabled() {
		return nil
	}
	return t.provider.Metrics()
}

func (t *telemetry) tracing() bool {
	return t.provider.Enabled() && t.config.TracingExporter != instrumentation.ExporterNone
}

func (t *telemetry) shutdown(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), instrumentationShutdownTimeout)
	defer cancel()
	if err := t.provider.Shutdown(ctx); err != nil {
		logger.Warn("error during instrumentation shutdown", logging.Err(err))
	}
}

// newRunner creates the chat runner for the configured agent.
func newRunner(cfg *config.Config, logger *slog.Logger, tel *telemetry, extra ...chat.Option) (*chat.Runner, error) {
	clientOpts := []agent.Option{agent.WithReadTimeout(cfg.Agent.ReadTimeout)}
	if tel.tracing() {
		clientOpts = append(clientOpts, agent.WithHTTPClient(&http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}))
	}

	client, err := agent.NewClient(cfg.Agent.URL, cfg.Agent.ChatPath, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent client: %w", err)
	}

	opts := []chat.Option{
		chat.WithLogger(logger),
		chat.WithMetrics(tel.metrics()),
		chat.WithContextDays(cfg.Agent.ContextDays),
		chat.WithMaxMetadataBytes(cfg.Agent.MaxMetadataBytes),
	}
	return chat.NewRunner(client, append(opts, extra...)...), nil
}

func newPublisher(cfg *config.Config) (events.Publisher, error) {
	publisher, err := events.NewPublisher(events.Config{
		RedisURL:   cfg.Events.RedisURL,
		Channel:    cfg.Events.Channel,
		WebhookURL: cfg.Events.WebhookURL,
		Timeout:    cfg.Events.Timeout,
		Retries:    cfg.Events.Retries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	return publisher, nil
}

func dispatchOptions(logger *slog.Logger, tel *telemetry, publisher events.Publisher) []dispatch.Option {
	return []dispatch.Option{
		dispatch.WithMetrics(tel.metrics()),
		dispatch.WithAuditLogger(tel.audit),
		dispatch.WithPublisher(publisher),
		dispatch.WithLogger(logger),
	}
}

func calendarOptions(cfg *config.Config, tel *telemetry) []calendar.Option {
	return []calendar.Option{
		calendar.WithCalendarID(cfg.Google.CalendarID),
		calendar.WithMetrics(tel.metrics()),
	}
}

// localOAuthConfig returns the OAuth client used by the terminal commands.
// The redirect URL is set by the loopback flow.
func localOAuthConfig(cfg *config.Config) (*oauth2.Config, error) {
	if err := cfg.ValidateOAuth(); err != nil {
		return nil, err
	}
	return google.NewOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, ""), nil
}
