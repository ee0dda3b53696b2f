package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantDebug bool
		wantJSON  bool
	}{
		{name: "text info", level: "info", format: "text"},
		{name: "json debug", level: "debug", format: "json", wantDebug: true, wantJSON: true},
		{name: "upper case", level: "DEBUG", format: "JSON", wantDebug: true, wantJSON: true},
		{name: "fallbacks", level: "loud", format: "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(tt.level, tt.format, &buf)

			logger.Debug("debug line")
			logger.Info("info line", Action("insert"))

			out := buf.String()
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "debug line"))
			assert.Contains(t, out, "info line")

			if tt.wantJSON {
				lines := strings.Split(strings.TrimSpace(out), "\n")
				var m map[string]any
				require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &m))
				assert.Equal(t, "insert", m[KeyAction])
			} else {
				assert.Contains(t, out, "action=insert")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
}

func TestAttrs(t *testing.T) {
	tests := []struct {
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{Operation("calendar.list"), KeyOperation, "calendar.list"},
		{Service("calendar"), KeyService, "calendar"},
		{Tool("agent_chat"), KeyTool, "agent_chat"},
		{Status(StatusSuccess), KeyStatus, "success"},
		{Action("delete"), KeyAction, "delete"},
		{EventID("evt_1"), KeyEventID, "evt_1"},
		{Outcome("complete"), KeyOutcome, "complete"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantKey, tt.attr.Key)
		assert.Equal(t, tt.wantVal, tt.attr.Value.String())
	}
}

func TestWithHelpers(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	WithRequestID(WithTool(WithOperation(base, "relay"), "agent_chat"), "req-1").Info("hello")
	WithRequestID(base, "").Info("no id")

	out := buf.String()
	assert.Contains(t, out, "operation=relay")
	assert.Contains(t, out, "tool=agent_chat")
	assert.Contains(t, out, "request_id=req-1")
	assert.Equal(t, 1, strings.Count(out, "request_id"))
}

func TestErr(t *testing.T) {
	attr := Err(errors.New("boom"))
	assert.Equal(t, KeyError, attr.Key)
	assert.Equal(t, "boom", attr.Value.String())

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("ok", Err(nil))
	assert.NotContains(t, buf.String(), "error")
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "<empty>", SanitizeToken(""))
	assert.Equal(t, "[token:5 chars]", SanitizeToken("ya29x"))
	assert.NotContains(t, SanitizeToken("secret-token"), "secret")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...(truncated)", Truncate("abcdef", 3))
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))
}
