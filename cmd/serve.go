package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jingjing529/ai-calendar-agent/internal/config"
	"github.com/jingjing529/ai-calendar-agent/internal/google"
	"github.com/jingjing529/ai-calendar-agent/internal/logging"
	"github.com/jingjing529/ai-calendar-agent/internal/server"
	"github.com/jingjing529/ai-calendar-agent/internal/session"
)

func newServeCmd() *cobra.Command {
	var (
		httpAddr    string
		metricsAddr string
		noMetrics   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web API",
		Long: `Start the web API used by the browser client.

Endpoints:
  GET  /api/auth/google            Start Google sign-in
  GET  /api/auth/google/callback   OAuth redirect target
  POST /api/logout                 Clear the session
  GET  /api/calendar-events        Upcoming events for display
  POST /api/calendar               Apply an insert, edit or delete
  POST /api/message                Stream an agent reply

Google sign-in needs GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET. Session cookies
are encrypted when SESSION_ENCRYPTION_KEY is set (see 'ai-calendar-agent keygen').`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http-addr") {
				cfg.Server.Addr = httpAddr
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
			}
			if noMetrics {
				cfg.Metrics.Enabled = false
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address. Can also use HTTP_ADDR env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "Disable the dedicated metrics server")

	return cmd
}

func runServe(cfg *config.Config) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cfg.ValidateOAuth(); err != nil {
		return fmt.Errorf("google sign-in is not configured: %w", err)
	}

	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	tel, err := newTelemetry(shutdownCtx, logger)
	if err != nil {
		return err
	}
	defer tel.shutdown(logger)

	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled && tel.provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Metrics.Addr,
			InstrumentationProvider: tel.provider,
		})
		if err != nil {
			logger.Warn("metrics server disabled", logging.Err(err))
		} else {
			go func() {
				if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server stopped", logging.Err(err))
				}
			}()
			logger.Info("metrics server started", "addr", metricsServer.Addr())
		}
	}

	key, err := cfg.EncryptionKey()
	if err != nil {
		return err
	}
	codec, err := session.NewCodec(key)
	if err != nil {
		return err
	}
	if !codec.Encrypted() {
		logger.Warn("session cookies are not encrypted; set SESSION_ENCRYPTION_KEY for production")
	}

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

	health := server.NewHealthChecker(nil)
	health.SetInfo(version, cfg.Agent.URL)

	srv, err := server.New(server.Config{
		OAuth:           google.NewOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.RedirectURL()),
		Sessions:        session.NewManager(codec, cfg.Session.Secure),
		Runner:          runner,
		Calendars:       server.NewCalendarFactory(calendarOptions(cfg, tel)...),
		DispatchOptions: dispatchOptions(logger, tel, publisher),
		FrontendURL:     cfg.Server.FrontendURL,
		SuccessPath:     cfg.Server.SuccessPath,
		DefaultTimezone: cfg.Agent.DefaultTimezone,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RateLimit: server.RateLimitConfig{
			RequestsPerMinute: cfg.Server.RateLimit.RequestsPerMinute,
			Burst:             cfg.Server.RateLimit.Burst,
			TrustProxy:        cfg.Server.RateLimit.TrustProxy,
		},
		Metrics: tel.metrics(),
		Tracing: tel.tracing(),
		Logger:  logger,
		Health:  health,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	httpServer := server.NewHTTPServer(cfg.Server.Addr, srv.Handler())
	useTLS := cfg.Server.TLSCertFile != ""

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		var err error
		if useTLS {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	logger.Info("web API started",
		"addr", cfg.Server.Addr,
		"tls", useTLS,
		"agent", cfg.Agent.URL,
		"redirect_url", cfg.RedirectURL())

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	health.SetReady(false)
	ctx, cancelShutdown := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancelShutdown()

	var errs []error
	if err := httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("error shutting down HTTP server: %w", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("error shutting down metrics server: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}
