package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/jingjing529/ai-calendar-agent/internal/config"
	"github.com/jingjing529/ai-calendar-agent/internal/google"
	"github.com/jingjing529/ai-calendar-agent/internal/logging"
	"github.com/jingjing529/ai-calendar-agent/internal/server"
	"github.com/jingjing529/ai-calendar-agent/internal/tools/calendar_tools"
)

const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"
)

type mcpOptions struct {
	transport        string
	httpAddr         string
	yolo             bool
	account          string
	disableStreaming bool
}

func newMCPCmd() *cobra.Command {
	var opts mcpOptions

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long: `Start the MCP (Model Context Protocol) server exposing the calendar agent
as tools for AI assistants.

Calendar access uses the token stored by 'ai-calendar-agent login' or the
GOOGLE_ACCESS_TOKEN environment variable.

By default the server is read-only: actions can be proposed and decoded but
not applied. Use --yolo to register calendar_apply_action.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runMCP(cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", transportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", "127.0.0.1:8081", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&opts.yolo, "yolo", false, "Enable write operations (applying calendar actions). Default is read-only mode.")
	cmd.Flags().StringVar(&opts.account, "account", "default", "Name of the stored Google token to use")
	cmd.Flags().BoolVar(&opts.disableStreaming, "disable-streaming", false, "Disable streaming for HTTP transport (for compatibility with certain clients)")

	return cmd
}

func runMCP(cfg *config.Config, opts mcpOptions) error {
	if opts.transport != transportStdio && opts.transport != transportStreamableHTTP {
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", opts.transport)
	}

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Stdout carries the protocol on stdio; logs go to stderr.
	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	tel, err := newTelemetry(shutdownCtx, logger)
	if err != nil {
		return err
	}
	defer tel.shutdown(logger)

	runner, err := newRunner(cfg, logger, tel)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("error closing event publisher", logging.Err(err))
		}
	}()

	serverContext := server.NewServerContext(shutdownCtx, tokenProvider(cfg, opts.account, logger), runner,
		server.WithCalendarOptions(calendarOptions(cfg, tel)...),
		server.WithDispatchOptions(dispatchOptions(logger, tel, publisher)...),
		server.WithInstrumentation(tel.metrics(), tel.audit),
		server.WithDefaultTimezone(cfg.Agent.DefaultTimezone),
	)
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("error during server context shutdown", logging.Err(err))
		}
	}()

	mcpSrv, err := newMCPServer(serverContext, !opts.yolo)
	if err != nil {
		return err
	}

	if opts.yolo {
		logger.Info("starting MCP server with WRITE operations enabled (--yolo flag is set)")
	} else {
		logger.Info("starting MCP server in READ-ONLY mode (use --yolo to enable write operations)")
	}

	switch opts.transport {
	case transportStreamableHTTP:
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, opts, cfg.Agent.URL, logger)
	default:
		return runStdioServer(mcpSrv)
	}
}

// tokenProvider picks GOOGLE_ACCESS_TOKEN when set, else the stored token
// for account. It returns nil when neither can work.
func tokenProvider(cfg *config.Config, account string, logger *slog.Logger) google.TokenProvider {
	if tok := os.Getenv("GOOGLE_ACCESS_TOKEN"); tok != "" {
		return google.StaticTokenProvider{AccessToken: tok}
	}
	conf, err := localOAuthConfig(cfg)
	if err != nil {
		logger.Warn("calendar tools need a Google token; run 'ai-calendar-agent login' first", logging.Err(err))
		return nil
	}
	return google.NewFileTokenProvider(conf, account)
}

func newMCPServer(sc *server.ServerContext, readOnly bool) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpserver.NewMCPServer("ai-calendar-agent", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := calendar_tools.RegisterCalendarTools(mcpSrv, sc, readOnly); err != nil {
		return nil, fmt.Errorf("failed to register Calendar tools: %w", err)
	}
	return mcpSrv, nil
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, opts mcpOptions, agentURL string, logger *slog.Logger) error {
	streamable := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
		mcpserver.WithDisableStreaming(opts.disableStreaming),
	)

	mux := http.NewServeMux()
	mux.Handle("/mcp", streamable)
	health := server.NewHealthChecker(sc)
	health.SetInfo(version, agentURL)
	health.RegisterHealthEndpoints(mux)

	httpServer := server.NewHTTPServer(opts.httpAddr, mux)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()
	logger.Info("MCP server listening", "addr", opts.httpAddr, "endpoint", "/mcp")

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}
