package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read from the working directory when no path is given.
const DefaultConfigFile = "ai-calendar-agent.yaml"

// Load builds the configuration with precedence defaults < YAML file < environment.
// An explicit path must exist; the default file is optional.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	ApplyEnv(cfg)
	return cfg, nil
}

// LoadDotEnv loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("could not load .env file, continuing with existing environment",
				"path", path, "error", err)
		}
		return
	}
	slog.Debug("loaded environment file", "path", path)
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "HTTP_ADDR")
	setString(&cfg.Server.BaseURL, "BASE_URL")
	setString(&cfg.Server.FrontendURL, "FRONTEND_URL")
	setString(&cfg.Server.SuccessPath, "SUCCESS_PATH")
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = ParseCommaSeparatedList(v)
	}
	setString(&cfg.Server.TLSCertFile, "TLS_CERT_FILE")
	setString(&cfg.Server.TLSKeyFile, "TLS_KEY_FILE")
	setInt(&cfg.Server.RateLimit.RequestsPerMinute, "RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.Server.RateLimit.Burst, "RATE_LIMIT_BURST")
	setBool(&cfg.Server.RateLimit.TrustProxy, "RATE_LIMIT_TRUST_PROXY")

	setString(&cfg.Agent.URL, "AGENT_URL")
	setString(&cfg.Agent.ChatPath, "AGENT_CHAT_PATH")
	setDuration(&cfg.Agent.ReadTimeout, "AGENT_READ_TIMEOUT")
	setInt(&cfg.Agent.MaxMetadataBytes, "AGENT_MAX_METADATA_BYTES")
	setInt(&cfg.Agent.ContextDays, "AGENT_CONTEXT_DAYS")
	setString(&cfg.Agent.DefaultTimezone, "TZ")
	setString(&cfg.Agent.DefaultTimezone, "DEFAULT_TIMEZONE")

	setString(&cfg.Google.ClientID, "GOOGLE_CLIENT_ID")
	setString(&cfg.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&cfg.Google.RedirectURL, "GOOGLE_REDIRECT_URL")
	setString(&cfg.Google.CalendarID, "GOOGLE_CALENDAR_ID")

	setString(&cfg.Session.EncryptionKey, "SESSION_ENCRYPTION_KEY")
	setBool(&cfg.Session.Secure, "SESSION_SECURE_COOKIES")

	setString(&cfg.Events.RedisURL, "REDIS_URL")
	setString(&cfg.Events.Channel, "EVENTS_CHANNEL")
	setString(&cfg.Events.WebhookURL, "EVENTS_WEBHOOK_URL")
	setDuration(&cfg.Events.Timeout, "EVENTS_TIMEOUT")
	setInt(&cfg.Events.Retries, "EVENTS_RETRIES")

	setBool(&cfg.Metrics.Enabled, "METRICS_ENABLED")
	setString(&cfg.Metrics.Addr, "METRICS_ADDR")

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
}

// ParseCommaSeparatedList splits s on commas, trimming whitespace and
// dropping empty elements. It returns nil if nothing remains.
func ParseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring invalid integer environment variable", "key", key, "value", v)
		return
	}
	*dst = n
}

func setBool(dst *bool, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("ignoring invalid boolean environment variable", "key", key, "value", v)
		return
	}
	*dst = b
}

func setDuration(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("ignoring invalid duration environment variable", "key", key, "value", v)
		return
	}
	*dst = d
}
