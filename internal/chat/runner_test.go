package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendarv3 "google.golang.org/api/calendar/v3"

	"github.com/jingjing529/ai-calendar-agent/internal/action"
	"github.com/jingjing529/ai-calendar-agent/internal/agent"
	"github.com/jingjing529/ai-calendar-agent/internal/calendar"
	"github.com/jingjing529/ai-calendar-agent/internal/stream"
)

// fakeAgent streams the given chunks and records the request it received.
type fakeAgent struct {
	mu       sync.Mutex
	received agent.Request
}

func newFakeAgent(t *testing.T, status int, chunks ...string) (*fakeAgent, *agent.Client) {
	t.Helper()
	f := &fakeAgent{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req agent.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.received = req
		f.mu.Unlock()

		if status != http.StatusOK {
			http.Error(w, "agent exploded", status)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			_, _ = w.Write([]byte(c))
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)

	c, err := agent.NewClient(srv.URL, "")
	require.NoError(t, err)
	return f, c
}

func (f *fakeAgent) request() agent.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.received
}

type fakeLister struct {
	events []*calendarv3.Event
	err    error
	from   time.Time
	to     time.Time
}

func (f *fakeLister) ListUpcoming(_ context.Context, from, to time.Time) ([]*calendarv3.Event, error) {
	f.from, f.to = from, to
	return f.events, f.err
}

func collect(fragments *[]string) stream.EmitFunc {
	return func(s string) error {
		*fragments = append(*fragments, s)
		return nil
	}
}

var testNow = time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)

func TestRunner_EndToEnd(t *testing.T) {
	_, client := newFakeAgent(t, http.StatusOK,
		"Sure, I'll add ", "your gym session.\n---JSON", "_META---\n",
		`{"action":"insert","eventId":null,"event":{"summary":"Gym"}}`)

	var fragments []string
	out, err := NewRunner(client, WithClock(func() time.Time { return testNow })).
		Run(context.Background(), Turn{Message: "add gym tomorrow 7am"}, collect(&fragments))
	require.NoError(t, err)

	assert.Equal(t, "Sure, I'll add your gym session.", strings.Join(fragments, ""))
	require.True(t, out.HasAction())
	assert.Equal(t, action.KindInsert, out.Action.Action)
	assert.JSONEq(t, `{"summary":"Gym"}`, string(out.Action.Event))
	assert.True(t, out.Stream.MarkerSeen)
}

func TestRunner_NoMarker(t *testing.T) {
	_, client := newFakeAgent(t, http.StatusOK, "  Just chatting.  ")

	var fragments []string
	out, err := NewRunner(client).Run(context.Background(), Turn{Message: "hi"}, collect(&fragments))
	require.NoError(t, err)

	assert.Equal(t, "Just chatting.", strings.Join(fragments, ""))
	assert.False(t, out.HasAction())
	assert.False(t, out.Stream.MarkerSeen)
	assert.Equal(t, action.KindUnknown, out.Trailer().Action)
}

func TestRunner_MalformedMetadata(t *testing.T) {
	_, client := newFakeAgent(t, http.StatusOK, "OK\n---JSON_META---\n{not json")

	out, err := NewRunner(client).Run(context.Background(), Turn{Message: "hi"}, func(string) error { return nil })
	require.NoError(t, err)
	assert.True(t, out.Stream.MarkerSeen)
	assert.False(t, out.HasAction())
}

func TestRunner_BuildsPromptWithContext(t *testing.T) {
	f, client := newFakeAgent(t, http.StatusOK, "ok")
	lister := &fakeLister{events: []*calendarv3.Event{{Id: "evt_9", Summary: "Review"}}}

	_, err := NewRunner(client,
		WithClock(func() time.Time { return testNow }),
		WithContextDays(7),
	).Run(context.Background(), Turn{
		Message:   "move that to Friday",
		Timezone:  "UTC",
		Events:    lister,
		LastEvent: &calendar.EventRef{ID: "evt_9", Summary: "Review", Start: "2026-10-19"},
	}, func(string) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, testNow, lister.from)
	assert.Equal(t, testNow.AddDate(0, 0, 7), lister.to)

	req := f.request()
	assert.Contains(t, req.Message, `"id": "evt_9"`)
	assert.Contains(t, req.Message, `"eventId": "evt_9"`)
	assert.Contains(t, req.Message, "User request: move that to Friday")
	assert.Empty(t, req.Timezone, "the agent receives only the prompt")
}

func TestRunner_ContextFailureIsNotFatal(t *testing.T) {
	f, client := newFakeAgent(t, http.StatusOK, "ok")
	lister := &fakeLister{err: errors.New("token expired")}

	_, err := NewRunner(client).Run(context.Background(),
		Turn{Message: "hi", Events: lister}, func(string) error { return nil })
	require.NoError(t, err)
	assert.Contains(t, f.request().Message, "Upcoming events (for choosing eventId when needed):\n[]")
}

func TestRunner_Passthrough(t *testing.T) {
	f, client := newFakeAgent(t, http.StatusOK, "ok")

	_, err := NewRunner(client, WithPassthrough()).Run(context.Background(),
		Turn{Message: "hi", Timezone: "Europe/Paris"}, func(string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, agent.Request{Message: "hi", Timezone: "Europe/Paris"}, f.request())
}

func TestRunner_InvalidTimezone(t *testing.T) {
	_, client := newFakeAgent(t, http.StatusOK, "ok")

	_, err := NewRunner(client).Run(context.Background(),
		Turn{Message: "hi", Timezone: "Not/AZone"}, func(string) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build prompt")
}

func TestRunner_UpstreamStatus(t *testing.T) {
	_, client := newFakeAgent(t, http.StatusBadGateway)

	var fragments []string
	out, err := NewRunner(client).Run(context.Background(), Turn{Message: "hi"}, collect(&fragments))
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, stream.ErrUpstream)

	var statusErr *agent.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	assert.Empty(t, fragments)
}

func TestRunner_DownstreamFailureGatesAction(t *testing.T) {
	_, client := newFakeAgent(t, http.StatusOK,
		"Deleting it now.", "\n---JSON_META---\n", `{"action":"delete","eventId":"x"}`)

	out, err := NewRunner(client).Run(context.Background(), Turn{Message: "delete"}, func(string) error {
		return errors.New("client went away")
	})
	require.Error(t, err)
	assert.Nil(t, out, "no action after a failed write")
	assert.ErrorIs(t, err, stream.ErrDownstream)
}

func TestRunner_CanceledBeforeStart(t *testing.T) {
	_, client := newFakeAgent(t, http.StatusOK, "ok")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := NewRunner(client).Run(ctx, Turn{Message: "hi"}, func(string) error { return nil })
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, stream.ErrCanceled)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: "complete"},
		{err: stream.ErrCanceled, want: "canceled"},
		{err: stream.ErrDownstream, want: "downstream_error"},
		{err: stream.ErrUpstream, want: "upstream_error"},
		{err: errors.New("other"), want: "upstream_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err))
	}
}
