package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendarv3 "google.golang.org/api/calendar/v3"

	"github.com/jingjing529/ai-calendar-agent/internal/calendar"
	"github.com/jingjing529/ai-calendar-agent/internal/stream"
)

var fixedNow = time.Date(2026, 10, 18, 22, 4, 0, 0, time.UTC)

func TestBuild_CurrentDateTimeInUserZone(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		want     string
	}{
		{name: "utc", timezone: "UTC", want: "Sunday, October 18, 2026 at 10:04 PM"},
		{name: "default is utc", timezone: "", want: "Sunday, October 18, 2026 at 10:04 PM"},
		{name: "los angeles", timezone: "America/Los_Angeles", want: "Sunday, October 18, 2026 at 3:04 PM"},
		{name: "shanghai next day", timezone: "Asia/Shanghai", want: "Monday, October 19, 2026 at 6:04 AM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Build(Params{UserMessage: "hi", Timezone: tt.timezone, Now: fixedNow})
			require.NoError(t, err)
			assert.Contains(t, got, "Current date and time: "+tt.want)
		})
	}
}

func TestBuild_InvalidTimezone(t *testing.T) {
	_, err := Build(Params{UserMessage: "hi", Timezone: "Mars/Olympus", Now: fixedNow})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mars/Olympus")
}

func TestBuild_EmptyContext(t *testing.T) {
	got, err := Build(Params{UserMessage: "what's on tomorrow?", Now: fixedNow})
	require.NoError(t, err)

	assert.Contains(t, got, "Upcoming events (for choosing eventId when needed):\n[]\n")
	assert.Contains(t, got, "Last event you assisted with:\nnull\n")
	assert.True(t, strings.HasPrefix(got, "You are a smart conversational Google Calendar assistant"))
	assert.True(t, strings.HasSuffix(got, "User request: what's on tomorrow?"))
}

func TestBuild_EventsAndLastEvent(t *testing.T) {
	events := calendar.ToContext([]*calendarv3.Event{{
		Id:      "evt_1",
		Summary: "Dentist",
		Start:   &calendarv3.EventDateTime{DateTime: "2026-10-20T09:00:00-07:00"},
	}})
	last := &calendar.EventRef{ID: "evt_1", Summary: `Team "sync"`, Start: "2026-10-20T09:00:00-07:00"}

	got, err := Build(Params{
		UserMessage: "move that to 10",
		Timezone:    "America/Los_Angeles",
		Now:         fixedNow,
		Events:      events,
		LastEvent:   last,
	})
	require.NoError(t, err)

	assert.Contains(t, got, "[\n  {\n    \"id\": \"evt_1\",\n    \"summary\": \"Dentist\",")
	assert.Contains(t, got, `"summary": "Team \"sync\""`, "summaries are JSON escaped")
	assert.Contains(t, got, `"timeZone": "America/Los_Angeles"`)
	assert.Contains(t, got, `"eventId": "evt_1"`)
}

func TestBuild_MarkerInstructions(t *testing.T) {
	got, err := Build(Params{UserMessage: "x", Now: fixedNow})
	require.NoError(t, err)

	assert.Contains(t, got, `Output exactly "`+stream.Marker+`" on its own line.`)
	assert.Contains(t, got, "\n"+stream.Marker+"\n{\"action\":\"insert\"")
}

func TestBuild_UserMessageIsNotEscaped(t *testing.T) {
	got, err := Build(Params{UserMessage: "lunch with <Sam> & Alex", Now: fixedNow})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got, "User request: lunch with <Sam> & Alex"))
}

func TestResolveTimezone(t *testing.T) {
	assert.Equal(t, "Europe/Berlin", ResolveTimezone("Europe/Berlin", "UTC"))
	assert.Equal(t, "Asia/Tokyo", ResolveTimezone("Nowhere/Land", "Asia/Tokyo"))
	assert.Equal(t, "Asia/Tokyo", ResolveTimezone("", "Asia/Tokyo"))
	assert.Equal(t, "UTC", ResolveTimezone("", ""))
	assert.Equal(t, "UTC", ResolveTimezone("bad", "worse"))
}
