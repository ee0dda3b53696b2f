package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Agent   AgentConfig   `yaml:"agent"`
	Google  GoogleConfig  `yaml:"google"`
	Session SessionConfig `yaml:"session"`
	Events  EventsConfig  `yaml:"events"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig configures the HTTP front-end.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `yaml:"addr"`
	// BaseURL is the public URL used to build the OAuth redirect.
	BaseURL string `yaml:"base_url"`
	// FrontendURL is the origin of the web client when it is served
	// separately; sign-in redirects are resolved against it.
	FrontendURL string `yaml:"frontend_url"`
	// SuccessPath is where the browser lands after login (default "/success").
	SuccessPath string `yaml:"success_path"`
	// AllowedOrigins lists CORS origins allowed to call the API.
	AllowedOrigins []string `yaml:"allowed_origins"`
	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string `yaml:"tls_cert_file"`
	TLSKeyFile  string `yaml:"tls_key_file"`
	// RateLimit throttles /api/message per client.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures the per-client limiter.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate; zero disables limiting.
	RequestsPerMinute int `yaml:"requests_per_minute"`
	// Burst is the bucket size.
	Burst int `yaml:"burst"`
	// TrustProxy honours X-Forwarded-For and X-Real-IP.
	TrustProxy bool `yaml:"trust_proxy"`
}

// AgentConfig configures the upstream LLM agent backend.
type AgentConfig struct {
	// URL is the agent backend base URL.
	URL string `yaml:"url"`
	// ChatPath is the streaming endpoint path (default "/chat").
	ChatPath string `yaml:"chat_path"`
	// ReadTimeout bounds the wait for each fragment.
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// MaxMetadataBytes caps the metadata tail of one reply.
	MaxMetadataBytes int `yaml:"max_metadata_bytes"`
	// ContextDays is how far ahead upcoming events are loaded into the prompt.
	ContextDays int `yaml:"context_days"`
	// DefaultTimezone is used when a client sends no valid timezone.
	DefaultTimezone string `yaml:"default_timezone"`
}

// GoogleConfig configures the OAuth client and calendar target.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// RedirectURL defaults to BaseURL + "/api/auth/google/callback".
	RedirectURL string `yaml:"redirect_url"`
	// CalendarID is the calendar actions apply to (default "primary").
	CalendarID string `yaml:"calendar_id"`
}

// SessionConfig configures session cookies.
type SessionConfig struct {
	// EncryptionKey is a base64 AES-256 key; empty stores cookies in plaintext.
	EncryptionKey string `yaml:"encryption_key"`
	// Secure marks cookies HTTPS-only.
	Secure bool `yaml:"secure"`
}

// EventsConfig configures the action event publisher.
type EventsConfig struct {
	// RedisURL enables Redis publishing when set.
	RedisURL string `yaml:"redis_url"`
	Channel  string `yaml:"channel"`
	// WebhookURL enables webhook publishing when set.
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout"`
	Retries    int           `yaml:"retries"`
}

// MetricsConfig configures the dedicated metrics server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			SuccessPath: "/success",
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 30,
				Burst:             5,
			},
		},
		Agent: AgentConfig{
			URL:              "http://localhost:8000",
			ChatPath:         "/chat",
			ReadTimeout:      60 * time.Second,
			MaxMetadataBytes: 64 * 1024,
			ContextDays:      30,
		},
		Google: GoogleConfig{
			CalendarID: "primary",
		},
		Events: EventsConfig{
			Channel: "calendar-agent:action_applied",
			Timeout: 5 * time.Second,
			Retries: 3,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// RedirectURL returns the OAuth callback URL.
func (c *Config) RedirectURL() string {
	if c.Google.RedirectURL != "" {
		return c.Google.RedirectURL
	}
	return c.BaseURL() + "/api/auth/google/callback"
}

// BaseURL returns the configured base URL or one derived from the listen address.
func (c *Config) BaseURL() string {
	if c.Server.BaseURL != "" {
		return c.Server.BaseURL
	}
	addr := c.Server.Addr
	if addr != "" && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

// EncryptionKey decodes the session key. It returns nil when none is set.
func (c *Config) EncryptionKey() ([]byte, error) {
	if c.Session.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.Session.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid session encryption key (must be base64 encoded): %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("session encryption key must be exactly 32 bytes (got %d bytes)", len(key))
	}
	return key, nil
}

// Validate checks settings shared by every command.
func (c *Config) Validate() error {
	var errs []error

	if c.Agent.URL == "" {
		errs = append(errs, errors.New("agent URL is required"))
	} else if u, err := url.Parse(c.Agent.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid agent URL %q", c.Agent.URL))
	}
	if c.Agent.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("agent read timeout must not be negative, got %s", c.Agent.ReadTimeout))
	}
	if c.Agent.ContextDays < 0 {
		errs = append(errs, fmt.Errorf("agent context days must not be negative, got %d", c.Agent.ContextDays))
	}
	if c.Server.RateLimit.RequestsPerMinute < 0 || c.Server.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate limit values must not be negative"))
	}
	if c.Events.Retries < 0 {
		errs = append(errs, fmt.Errorf("event publish retries must be >= 0, got %d", c.Events.Retries))
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, errors.New("both TLS certificate and key files must be provided"))
	}
	if _, err := c.EncryptionKey(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q, must be one of: text, json", c.Log.Format))
	}

	return errors.Join(errs...)
}

// ValidateOAuth checks the settings the web server needs for Google sign-in.
func (c *Config) ValidateOAuth() error {
	var errs []error
	if c.Google.ClientID == "" {
		errs = append(errs, errors.New("google client ID is required (GOOGLE_CLIENT_ID)"))
	}
	if c.Google.ClientSecret == "" {
		errs = append(errs, errors.New("google client secret is required (GOOGLE_CLIENT_SECRET)"))
	}
	return errors.Join(errs...)
}
