// Package calendar_tools provides MCP (Model Context Protocol) tools for the
// calendar agent.
//
// Read tools list upcoming events, run a chat turn against the agent and
// split a raw agent reply into its message and action. With write access
// enabled, calendar_apply_action applies an insert, edit or delete to the
// signed-in user's primary calendar.
package calendar_tools
