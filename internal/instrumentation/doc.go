// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for the calendar agent.
//
// # Metrics
//
// HTTP:
//   - http_requests_total, http_request_duration_seconds by method, route and status
//   - http_rate_limited_total by route
//
// Google Calendar:
//   - google_api_operations_total, google_api_operation_duration_seconds by operation and status
//   - oauth_auth_total by result
//
// Agent replies:
//   - agent_streams_total by outcome and marker_seen
//   - agent_stream_duration_seconds, agent_stream_message_bytes
//
// Actions:
//   - calendar_actions_total by action and status
//   - action_event_publishes_total by status
//   - mcp_tool_invocations_total, mcp_tool_duration_seconds
//
// # Tracing
//
// Spans are created for agent requests (agent.chat), reply splitting
// (stream.split), action dispatch (dispatch.<action>), Google API calls
// (google.calendar.<operation>) and MCP tools (tool.<name>).
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED: enable or disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces and metrics
//   - OTEL_TRACES_SAMPLER_ARG: sampling rate (default: 0.1)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_EVENT_DETAILS
//
// # Example
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordCalendarAction(ctx, "insert", instrumentation.StatusSuccess)
package instrumentation
