package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

// counterValue sums the data points of an Int64 counter that carry all of attrs.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				if hasAll(dp.Attributes, attrs) {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func hasAll(set attribute.Set, attrs []attribute.KeyValue) bool {
	for _, kv := range attrs {
		v, ok := set.Value(kv.Key)
		if !ok || v != kv.Value {
			return false
		}
	}
	return true
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordHTTPRequest(ctx, "POST", "/api/message", 200, 100*time.Millisecond)
	m.RecordHTTPRequest(ctx, "POST", "/api/message", 200, 50*time.Millisecond)
	m.RecordHTTPRequest(ctx, "GET", "/api/calendar-events", 401, time.Millisecond)

	assert.Equal(t, int64(2), counterValue(t, reader, "http_requests_total",
		attribute.String("path", "/api/message"), attribute.String("status", "200")))
	assert.Equal(t, int64(1), counterValue(t, reader, "http_requests_total",
		attribute.String("status", "401")))
}

func TestMetrics_RecordAgentStream(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAgentStream(ctx, OutcomeComplete, true, 42, time.Second)
	m.RecordAgentStream(ctx, OutcomeComplete, false, 10, time.Second)
	m.RecordAgentStream(ctx, OutcomeCanceled, false, 0, 2*time.Second)

	assert.Equal(t, int64(2), counterValue(t, reader, "agent_streams_total",
		attribute.String("outcome", OutcomeComplete)))
	assert.Equal(t, int64(1), counterValue(t, reader, "agent_streams_total",
		attribute.String("outcome", OutcomeComplete), attribute.Bool("marker_seen", true)))
	assert.Equal(t, int64(1), counterValue(t, reader, "agent_streams_total",
		attribute.String("outcome", OutcomeCanceled)))
}

func TestMetrics_RecordCalendarAction(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCalendarAction(ctx, "insert", StatusSuccess)
	m.RecordCalendarAction(ctx, "delete", StatusError)
	m.RecordCalendarAction(ctx, "something-else", StatusError)

	assert.Equal(t, int64(1), counterValue(t, reader, "calendar_actions_total",
		attribute.String("action", "insert"), attribute.String("status", StatusSuccess)))
	assert.Equal(t, int64(1), counterValue(t, reader, "calendar_actions_total",
		attribute.String("action", "unknown")))
}

func TestMetrics_RecordOthers(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordGoogleAPIOperation(ctx, ServiceCalendar, OperationList, StatusSuccess, 200*time.Millisecond)
	m.RecordOAuthAuth(ctx, OAuthResultSuccess)
	m.RecordOAuthAuth(ctx, OAuthResultFailure)
	m.RecordEventPublish(ctx, StatusError)
	m.RecordRateLimited(ctx, "/api/message")
	m.RecordToolInvocation(ctx, "agent_decode_reply", StatusSuccess, 10*time.Millisecond)

	assert.Equal(t, int64(1), counterValue(t, reader, "google_api_operations_total",
		attribute.String("service", ServiceCalendar), attribute.String("operation", OperationList)))
	assert.Equal(t, int64(2), counterValue(t, reader, "oauth_auth_total"))
	assert.Equal(t, int64(1), counterValue(t, reader, "action_event_publishes_total",
		attribute.String("status", StatusError)))
	assert.Equal(t, int64(1), counterValue(t, reader, "http_rate_limited_total"))
	assert.Equal(t, int64(1), counterValue(t, reader, "mcp_tool_invocations_total",
		attribute.String("tool", "agent_decode_reply")))
}

func TestMetrics_NilSafe(t *testing.T) {
	ctx := context.Background()

	for _, m := range []*Metrics{nil, {}} {
		assert.NotPanics(t, func() {
			m.RecordHTTPRequest(ctx, "GET", "/", 200, time.Millisecond)
			m.RecordRateLimited(ctx, "/")
			m.RecordGoogleAPIOperation(ctx, ServiceCalendar, OperationList, StatusSuccess, time.Millisecond)
			m.RecordOAuthAuth(ctx, OAuthResultSuccess)
			m.RecordAgentStream(ctx, OutcomeComplete, true, 1, time.Millisecond)
			m.RecordCalendarAction(ctx, "insert", StatusSuccess)
			m.RecordEventPublish(ctx, StatusSuccess)
			m.RecordToolInvocation(ctx, "tool", StatusSuccess, time.Millisecond)
		})
	}
}
