package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/session"
)

const (
	// CallbackPath receives the token on success.
	CallbackPath = "/auth/callback"
	// LoginPath receives the error on failure.
	LoginPath = "/login"

	readHeaderTimeout = 10 * time.Second
)

// Completer finishes a handshake. *session.Store implements it.
type Completer interface {
	CompleteHandshake(ctx context.Context, cb session.Callback) error
}

// Config configures a Server.
type Config struct {
	// Addr is the listen address, e.g. 127.0.0.1:3000.
	Addr string

	Completer Completer
	Logger    *slog.Logger
	Metrics   *instrumentation.Metrics
}

// Server is the redirect receiver.
type Server struct {
	addr      string
	completer Completer
	logger    *slog.Logger
	metrics   *instrumentation.Metrics

	engine     *gin.Engine
	httpServer *http.Server
	listener   net.Listener
	served     chan struct{}

	once    sync.Once
	results chan error
}

// New creates a Server. It does not listen until Start.
func New(cfg Config) (*Server, error) {
	if cfg.Completer == nil {
		return nil, errors.New("callback: completer is required")
	}
	if cfg.Addr == "" {
		return nil, errors.New("callback: listen address is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:      cfg.Addr,
		completer: cfg.Completer,
		logger:    logging.WithComponent(logger, "callback"),
		metrics:   cfg.Metrics,
		results:   make(chan error, 1),
	}
	s.engine = s.newRouter()
	return s, nil
}

func (s *Server) newRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.observe())

	r.GET(CallbackPath, s.handleCallback)
	r.GET(LoginPath, s.handleLoginError)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins listening and serving in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.served = make(chan struct{})

	go func() {
		defer close(s.served)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("callback server stopped", logging.Err(err))
		}
	}()

	s.logger.Info("waiting for login redirect", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the base URL the backend should redirect to.
func (s *Server) URL() string {
	return "http://" + s.Addr()
}

// Wait blocks until the first redirect has been handled and returns its
// outcome, or until ctx ends.
func (s *Server) Wait(ctx context.Context) error {
	select {
	case err := <-s.results:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)
	<-s.served
	return err
}

func (s *Server) handleCallback(c *gin.Context) {
	err := s.completer.CompleteHandshake(context.WithoutCancel(c.Request.Context()), session.Callback{
		Token: c.Query("token"),
		Error: c.Query("error"),
	})
	s.deliver(err)

	if err != nil {
		s.logger.Info("login redirect did not complete", logging.Err(err))
		c.String(http.StatusUnauthorized, "Login failed. Return to the terminal for details.\n")
		return
	}
	c.String(http.StatusOK, "Login successful. You can close this window.\n")
}

func (s *Server) handleLoginError(c *gin.Context) {
	reason := c.Query("error")
	if reason == "" {
		// The frontend login page itself; nothing to complete.
		c.String(http.StatusOK, "Run `inboxchat login` to sign in.\n")
		return
	}

	err := s.completer.CompleteHandshake(context.WithoutCancel(c.Request.Context()), session.Callback{Error: reason})
	s.deliver(err)
	c.String(http.StatusBadRequest, "Login failed: %s\n", reason)
}

// deliver records the first outcome; later redirects are served but ignored.
func (s *Server) deliver(err error) {
	s.once.Do(func() {
		s.results <- err
	})
}

// observe records request metrics and logs each request, in place of
// gin.Logger.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = instrumentation.LabelOther
		}
		status := c.Writer.Status()

		s.metrics.RecordHTTPRequest(c.Request.Context(), c.Request.Method, route, status, duration)
		s.logger.Debug("request served",
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration(logging.KeyDuration, duration))
	}
}
