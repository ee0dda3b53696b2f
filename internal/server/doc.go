// Package server provides the web API of the calendar agent and the
// long-lived context shared by the MCP tools.
//
// # Routes
//
//   - GET  /api/auth/google           starts Google sign-in
//   - GET  /api/auth/google/callback  completes sign-in and stores the access token cookie
//   - POST /api/logout                clears the session
//   - GET  /api/calendar-events       lists the next month of events
//   - POST /api/calendar              applies an insert, edit or delete action
//   - POST /api/message               streams one agent reply, then the marker and the action
//   - GET  /healthz, /readyz, /healthz/detailed
//
// /api/message writes reply text as soon as it is safe to show and flushes
// each fragment. When the reply carried the marker, the stream ends with a
// newline, the marker, a newline and the compact JSON action, so clients
// parse the relay with the same splitter as the agent itself. A failure
// before the first byte is reported with a status code; a failure after it
// aborts the connection.
//
// ServerContext creates the calendar client lazily from a token provider so
// the MCP server can start before the user has signed in.
//
// MetricsServer serves Prometheus metrics on a dedicated port.
package server
