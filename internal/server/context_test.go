package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/jingjing529/ai-calendar-agent/internal/action"
	"github.com/jingjing529/ai-calendar-agent/internal/calendar"
	"github.com/jingjing529/ai-calendar-agent/internal/google"
)

func TestServerContext_CalendarNeedsToken(t *testing.T) {
	sc := NewServerContext(context.Background(), google.StaticTokenProvider{}, nil)

	_, err := sc.Calendar()
	assert.ErrorIs(t, err, google.ErrNoToken)

	sc = NewServerContext(context.Background(), nil, nil)
	_, err = sc.Calendar()
	assert.ErrorIs(t, err, google.ErrNoToken)
}

func TestServerContext_CalendarIsCached(t *testing.T) {
	sc := NewServerContext(context.Background(), google.StaticTokenProvider{AccessToken: "ya29.x"}, nil,
		WithCalendarOptions(calendar.WithClientOptions(option.WithEndpoint("http://127.0.0.1:1/"))))

	first, err := sc.Calendar()
	require.NoError(t, err)
	second, err := sc.Calendar()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestServerContext_Dispatcher(t *testing.T) {
	fake := &fakeCalendar{}
	sc := NewServerContext(context.Background(), nil, nil, WithCalendar(fake))

	d, err := sc.Dispatcher()
	require.NoError(t, err)

	id := "evt_1"
	res, err := d.Dispatch(context.Background(), &action.Descriptor{Action: action.KindDelete, EventID: &id})
	require.NoError(t, err)
	assert.Equal(t, "evt_1", res.EventID)
	assert.Equal(t, "evt_1", fake.deletedID)
}

func TestServerContext_Shutdown(t *testing.T) {
	sc := NewServerContext(context.Background(), nil, nil, WithCalendar(&fakeCalendar{}))
	assert.False(t, sc.IsShutdown())

	require.NoError(t, sc.Shutdown())
	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())
	assert.Error(t, sc.Context().Err())

	_, err := sc.Calendar()
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestServerContext_LastEvent(t *testing.T) {
	sc := NewServerContext(context.Background(), nil, nil, WithDefaultTimezone("Europe/Berlin"))
	assert.Equal(t, "Europe/Berlin", sc.DefaultTimezone())
	assert.Nil(t, sc.LastEvent())

	ref := &calendar.EventRef{ID: "evt_1", Summary: "Gym"}
	sc.SetLastEvent(ref)
	assert.Equal(t, ref, sc.LastEvent())

	sc.SetLastEvent(nil)
	assert.Nil(t, sc.LastEvent())
}
