package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  addr: ":3000"
  allowed_origins: ["http://localhost:3000"]
agent:
  url: "http://agent:9000"
  read_timeout: 15s
google:
  client_id: "id"
events:
  redis_url: "redis://localhost:6379/0"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "http://agent:9000", cfg.Agent.URL)
	assert.Equal(t, 15*time.Second, cfg.Agent.ReadTimeout)
	assert.Equal(t, "/chat", cfg.Agent.ChatPath, "unset keys keep defaults")
	assert.Equal(t, "id", cfg.Google.ClientID)
	assert.Equal(t, "primary", cfg.Google.CalendarID)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Events.RedisURL)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  url: \"http://file:1\"\n"), 0o600))

	t.Setenv("AGENT_URL", "http://env:2")
	t.Setenv("AGENT_READ_TIMEOUT", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "12")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://env:2", cfg.Agent.URL)
	assert.Equal(t, 5*time.Second, cfg.Agent.ReadTimeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 12, cfg.Server.RateLimit.RequestsPerMinute)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestApplyEnv_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "lots")
	t.Setenv("METRICS_ENABLED", "maybe")
	t.Setenv("EVENTS_TIMEOUT", "soon")

	cfg := Default()
	ApplyEnv(cfg)

	assert.Equal(t, 5, cfg.Server.RateLimit.Burst)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Events.Timeout)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CAL_AGENT_DOTENV_TEST=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CAL_AGENT_DOTENV_TEST") })

	LoadDotEnv(path)
	assert.Equal(t, "from-file", os.Getenv("CAL_AGENT_DOTENV_TEST"))

	// Missing files are tolerated.
	LoadDotEnv(filepath.Join(t.TempDir(), "nope.env"))
}

func TestConfig_Validate(t *testing.T) {
	validKey := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "valid key", mutate: func(c *Config) { c.Session.EncryptionKey = validKey }},
		{name: "missing agent url", mutate: func(c *Config) { c.Agent.URL = "" }, wantErr: "agent URL is required"},
		{name: "relative agent url", mutate: func(c *Config) { c.Agent.URL = "/chat" }, wantErr: "invalid agent URL"},
		{name: "negative timeout", mutate: func(c *Config) { c.Agent.ReadTimeout = -time.Second }, wantErr: "read timeout"},
		{name: "negative rate", mutate: func(c *Config) { c.Server.RateLimit.Burst = -1 }, wantErr: "rate limit"},
		{name: "half tls", mutate: func(c *Config) { c.Server.TLSCertFile = "cert.pem" }, wantErr: "TLS"},
		{name: "bad key encoding", mutate: func(c *Config) { c.Session.EncryptionKey = "!!" }, wantErr: "base64"},
		{name: "short key", mutate: func(c *Config) {
			c.Session.EncryptionKey = base64.StdEncoding.EncodeToString([]byte("short"))
		}, wantErr: "32 bytes"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateOAuth(t *testing.T) {
	cfg := Default()
	err := cfg.ValidateOAuth()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client ID")
	assert.Contains(t, err.Error(), "client secret")

	cfg.Google.ClientID = "id"
	cfg.Google.ClientSecret = "secret"
	assert.NoError(t, cfg.ValidateOAuth())
}

func TestConfig_URLs(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL())
	assert.Equal(t, "http://localhost:8080/api/auth/google/callback", cfg.RedirectURL())

	cfg.Server.BaseURL = "https://cal.example.com"
	assert.Equal(t, "https://cal.example.com/api/auth/google/callback", cfg.RedirectURL())

	cfg.Google.RedirectURL = "https://other.example.com/cb"
	assert.Equal(t, "https://other.example.com/cb", cfg.RedirectURL())
}

func TestParseCommaSeparatedList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{input: "", want: nil},
		{input: " , ,", want: nil},
		{input: "a", want: []string{"a"}},
		{input: " a , b,c ", want: []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseCommaSeparatedList(tt.input), "input %q", tt.input)
	}
}
