package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the ai-calendar-agent application
var rootCmd = &cobra.Command{
	Use:   "ai-calendar-agent",
	Short: "Manage your Google Calendar by chatting with an AI agent",
	Long: `ai-calendar-agent relays a conversation with an AI agent and applies the
calendar actions it proposes to your primary Google Calendar.

It can run as:
  - A web API for the browser client (serve)
  - An MCP (Model Context Protocol) server for AI assistants (mcp)
  - A terminal chat (chat)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "ai-calendar-agent version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.configFile, "config", "", "Path to the YAML config file (default: ./ai-calendar-agent.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.envFile, "env-file", ".env", "Path to a .env file loaded before the environment is read")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newKeygenCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
