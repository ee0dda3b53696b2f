// Package cmd implements the command-line interface for ai-calendar-agent.
//
// This package provides the following commands:
//   - serve: Start the web API used by the browser client
//   - mcp: Start the MCP server to provide calendar agent tools for AI assistants
//   - chat: Chat with the agent from the terminal, optionally applying actions
//   - login / logout: Store or remove the Google token used by mcp and chat
//   - keygen: Generate a session cookie encryption key
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// Configuration is read from defaults, an optional YAML file, a .env file and
// the environment, in increasing order of precedence.
package cmd
