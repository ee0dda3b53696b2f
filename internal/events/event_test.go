package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []*ActionEvent
	err    error
	closed bool
}

func (r *recordingPublisher) Publish(_ context.Context, e *ActionEvent) error {
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return nil
}

func TestNewActionEvent(t *testing.T) {
	e := NewActionEvent("cli", "delete", "error")
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, EventType, e.EventType)
	assert.Equal(t, "cli", e.Source)

	ts, err := time.Parse(time.RFC3339, e.Timestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)

	assert.NotEqual(t, e.ID, NewActionEvent("cli", "delete", "error").ID)
}

func TestFanout(t *testing.T) {
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: errors.New("down")}
	f := Fanout{ok, failing}

	err := f.Publish(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Len(t, ok.events, 1, "a failing publisher does not block the others")

	require.NoError(t, f.Close())
	assert.True(t, ok.closed)
	assert.True(t, failing.closed)
}

func TestNewPublisher(t *testing.T) {
	p, err := NewPublisher(Config{})
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), testEvent()))

	mr := miniredis.RunT(t)
	p, err = NewPublisher(Config{RedisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisPublisher{}, p)
	_ = p.Close()

	p, err = NewPublisher(Config{RedisURL: "redis://" + mr.Addr(), WebhookURL: "http://127.0.0.1:1/hook"})
	require.NoError(t, err)
	assert.IsType(t, Fanout{}, p)
	_ = p.Close()

	_, err = NewPublisher(Config{RedisURL: "nope"})
	assert.Error(t, err)
}
