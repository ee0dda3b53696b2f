// Package logging provides structured logging helpers built on log/slog.
//
// It centralises attribute names so that logs from the HTTP server, the CLI
// and the MCP tools can be queried the same way, and it provides the handler
// constructor used by every command:
//
//	logger := logging.New("info", "json", os.Stderr)
//	logger.Info("action applied", logging.Action("insert"), logging.EventID(id))
//
// Tokens and cookie values are never logged; use SanitizeToken when a token's
// presence needs to be visible.
package logging
