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
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxchat/internal/config"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/resources"
	"github.com/teemow/inboxchat/internal/server"
	"github.com/teemow/inboxchat/internal/tools/assistant_tools"
)

const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

// serveOptions holds the serve command flags.
type serveOptions struct {
	transport        string
	httpAddr         string
	yolo             bool
	disableStreaming bool
	callbackAddr     string
	metrics          MetricsConfig
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	so := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server so that AI assistants can talk to
the email assistant on your behalf.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport

Safety Mode:
  By default, the server operates in read-only mode: the assistant can read,
  summarize and draft, but not send or discard mail on its own.
  Use --yolo to enable mail_send_reply and mail_discard.

Sign-in:
  The server uses the credential stored by 'inboxchat login'. Agents can also
  sign in with the assistant_login tool, which starts the local redirect
  receiver on callback.addr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("metrics-enabled") && os.Getenv("METRICS_ENABLED") == "false" {
				so.metrics.Enabled = false
			}
			if !cmd.Flags().Changed("metrics-addr") {
				if addr := os.Getenv("METRICS_ADDR"); addr != "" {
					so.metrics.Addr = addr
				}
			}
			return runServe(cmd.Context(), opts, so)
		},
	}

	cmd.Flags().StringVar(&so.transport, "transport", transportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&so.httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&so.yolo, "yolo", false, "Enable write operations (sending replies, discarding mail). Default is read-only mode.")
	cmd.Flags().BoolVar(&so.disableStreaming, "disable-streaming", false, "Disable streaming for HTTP transport (for compatibility with certain clients)")
	cmd.Flags().StringVar(&so.callbackAddr, "callback-addr", "", "Address for the login redirect receiver used by assistant_login. Can also use INBOXCHAT_CALLBACK_ADDR env var.")
	cmd.Flags().BoolVar(&so.metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&so.metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(ctx context.Context, opts *globalOptions, so *serveOptions) error {
	if so.transport != transportStdio && so.transport != transportStreamableHTTP {
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", so.transport)
	}

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	// Initialize instrumentation provider
	instrConfig := telemetryConfig(cfg)
	if err := instrConfig.Validate(); err != nil {
		return fmt.Errorf("invalid instrumentation configuration: %w", err)
	}

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(shutdownCtx), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(flushCtx); err != nil {
			slog.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	var metrics *instrumentation.Metrics
	if provider.Enabled() {
		metrics = provider.Metrics()
	}

	a, err := newApp(shutdownCtx, cfg, metrics)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	logger := a.logger

	callbackAddr := so.callbackAddr
	if callbackAddr == "" {
		callbackAddr = a.cfg.Callback.Addr
	}

	var auditLogger *instrumentation.AuditLogger
	if instrConfig.AuditLogging.Enabled {
		auditLogger = instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging)
	}

	serverContext, err := server.NewServerContext(shutdownCtx, server.Options{
		Gateway:         a.gateway,
		Session:         a.session,
		Conversation:    a.conversation,
		Logger:          logger,
		Instrumentation: provider,
		AuditLogger:     auditLogger,
		AllowWrite:      so.yolo,
		CallbackAddr:    callbackAddr,
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	health := server.NewHealthChecker(serverContext)

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if so.transport != transportStdio && so.metrics.Enabled && provider.Enabled() && provider.PrometheusEnabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    so.metrics.Addr,
			InstrumentationProvider: provider,
			Health:                  health,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
	}

	defer func() {
		// Shutdown metrics server first
		if metricsServer != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(stopCtx); err != nil {
				logger.Warn("error during metrics server shutdown", logging.Err(err))
			}
		}
		_ = serverContext.Shutdown()
	}()

	// Restore the session once up front so status and health are accurate.
	st := a.session.Initialize(shutdownCtx)
	logger.Info("session restored", logging.Status(string(st.Status)))

	mcpSrv := mcpserver.NewMCPServer("inboxchat", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)

	// readOnly is the inverse of yolo
	readOnly := !so.yolo
	if readOnly {
		logger.Info("starting server in read-only mode (use --yolo to enable write operations)")
	} else {
		logger.Info("starting server with write operations enabled (--yolo flag is set)")
	}

	if err := registerAllTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}
	if err := resources.RegisterResources(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register resources: %w", err)
	}
	health.SetReady(true)

	switch so.transport {
	case transportStdio:
		return runStdioServer(mcpSrv)
	default:
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, health, so.httpAddr, so.disableStreaming, logger)
	}
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
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// telemetryConfig maps the telemetry section of the config file onto the
// instrumentation provider's configuration.
func telemetryConfig(cfg *config.Config) instrumentation.Config {
	t := cfg.Telemetry
	ic := instrumentation.DefaultConfig()
	ic.ServiceVersion = version
	ic.Enabled = t.Enabled
	ic.MetricsExporter = t.MetricsExporter
	ic.TracingExporter = t.TracingExporter
	ic.OTLPEndpoint = t.OTLPEndpoint
	ic.OTLPInsecure = t.OTLPInsecure
	ic.TraceSamplingRate = t.TraceSamplingRate
	ic.DetailedLabels = t.DetailedLabels
	ic.AuditLogging = instrumentation.AuditLoggingConfig{
		Enabled:    t.AuditLog,
		IncludePII: t.AuditIncludePII,
	}
	return ic
}

// registerAllTools registers all MCP tools
func registerAllTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := assistant_tools.RegisterAssistantTools(mcpSrv, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register assistant tools: %w", err)
	}
	return nil
}

// newMCPHandler mounts the streamable HTTP transport at /mcp next to the
// health endpoints.
func newMCPHandler(mcpSrv *mcpserver.MCPServer, health *server.HealthChecker, disableStreaming bool) http.Handler {
	var mcpHandler *mcpserver.StreamableHTTPServer
	if disableStreaming {
		mcpHandler = mcpserver.NewStreamableHTTPServer(mcpSrv,
			mcpserver.WithEndpointPath("/mcp"),
			mcpserver.WithDisableStreaming(true),
		)
	} else {
		mcpHandler = mcpserver.NewStreamableHTTPServer(mcpSrv,
			mcpserver.WithEndpointPath("/mcp"),
		)
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpHandler)
	health.RegisterHealthEndpoints(mux)
	return mux
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, health *server.HealthChecker, addr string, disableStreaming bool, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           newMCPHandler(mcpSrv, health, disableStreaming),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		logger.Info("starting MCP server", slog.String("transport", transportStreamableHTTP), slog.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		health.SetReady(false)
		stopCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(stopCtx); err != nil {
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
