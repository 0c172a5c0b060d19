package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teemow/inboxchat/internal/instrumentation"
)

// Metrics server defaults.
const (
	DefaultMetricsAddr     = ":9090"
	DefaultShutdownTimeout = 30 * time.Second

	metricsReadHeaderTimeout = 10 * time.Second
	metricsWriteTimeout      = 10 * time.Second
	metricsIdleTimeout       = 60 * time.Second
)

// MetricsServerConfig holds configuration for the metrics server.
type MetricsServerConfig struct {
	// Addr defaults to DefaultMetricsAddr.
	Addr string

	// InstrumentationProvider must be enabled with the Prometheus exporter.
	InstrumentationProvider *instrumentation.Provider

	// Health, when set, adds /healthz, /readyz and /healthz/detailed.
	Health *HealthChecker

	Logger *slog.Logger
}

// MetricsServer serves Prometheus metrics on a dedicated port, away from the
// MCP transport.
type MetricsServer struct {
	addr   string
	health *HealthChecker
	logger *slog.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// NewMetricsServer checks that the provider feeds the Prometheus default
// registry. The server does not listen until Start.
func NewMetricsServer(config MetricsServerConfig) (*MetricsServer, error) {
	p := config.InstrumentationProvider
	switch {
	case p == nil:
		return nil, errors.New("instrumentation provider is required for metrics server")
	case !p.Enabled():
		return nil, errors.New("instrumentation provider is not enabled")
	case !p.PrometheusEnabled():
		return nil, errors.New("instrumentation provider does not export to prometheus")
	}

	ms := &MetricsServer{
		addr:   config.Addr,
		health: config.Health,
		logger: config.Logger,
	}
	if ms.addr == "" {
		ms.addr = DefaultMetricsAddr
	}
	if ms.logger == nil {
		ms.logger = slog.Default()
	}
	return ms, nil
}

// Handler serves /metrics from the Prometheus default registry plus the
// health endpoints. Without a HealthChecker only a plain /healthz is served.
func (s *MetricsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	if s.health != nil {
		s.health.RegisterHealthEndpoints(mux)
		return mux
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start listens on the configured address and serves until Shutdown. It
// returns nil after a clean shutdown.
func (s *MetricsServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: metricsReadHeaderTimeout,
		WriteTimeout:      metricsWriteTimeout,
		IdleTimeout:       metricsIdleTimeout,
	}

	s.mu.Lock()
	s.listener, s.srv = ln, srv
	s.mu.Unlock()

	s.logger.Info("metrics server listening", slog.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops a started server. It is a no-op before Start.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("shutting down metrics server")
	return srv.Shutdown(ctx)
}

// Addr returns the configured address.
func (s *MetricsServer) Addr() string {
	return s.addr
}

// ListenAddr returns the bound address once Start is listening, or "".
func (s *MetricsServer) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
