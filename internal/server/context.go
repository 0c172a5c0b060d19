package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/inboxchat/internal/callback"
	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/session"
)

// Options holds the collaborators a ServerContext hands to the MCP tools.
type Options struct {
	Gateway      *gateway.Client
	Session      *session.Store
	Conversation *conversation.Store

	Logger *slog.Logger

	// Instrumentation is optional. Without it tools run unmetered.
	Instrumentation *instrumentation.Provider
	AuditLogger     *instrumentation.AuditLogger

	// AllowWrite enables tools that send or delete mail.
	AllowWrite bool

	// CallbackAddr is where the login redirect receiver listens when a
	// login is started from a tool. Empty disables browser logins.
	CallbackAddr string
}

// ServerContext holds the context for the MCP server
type ServerContext struct {
	ctx          context.Context
	cancel       context.CancelFunc
	gateway      *gateway.Client
	session      *session.Store
	conversation *conversation.Store
	logger       *slog.Logger
	provider     *instrumentation.Provider
	auditLogger  *instrumentation.AuditLogger
	allowWrite   bool
	callbackAddr string
	mu           sync.RWMutex
	shutdown     bool
	receiver     *callback.Server
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, opts Options) (*ServerContext, error) {
	if opts.Gateway == nil || opts.Session == nil || opts.Conversation == nil {
		return nil, errors.New("gateway, session and conversation are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:          shutdownCtx,
		cancel:       cancel,
		gateway:      opts.Gateway,
		session:      opts.Session,
		conversation: opts.Conversation,
		logger:       logger,
		provider:     opts.Instrumentation,
		auditLogger:  opts.AuditLogger,
		allowWrite:   opts.AllowWrite,
		callbackAddr: opts.CallbackAddr,
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Gateway returns the backend client.
func (sc *ServerContext) Gateway() *gateway.Client {
	return sc.gateway
}

// Session returns the session store.
func (sc *ServerContext) Session() *session.Store {
	return sc.session
}

// Conversation returns the conversation store.
func (sc *ServerContext) Conversation() *conversation.Store {
	return sc.conversation
}

// Logger returns the server logger
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Metrics returns the metrics recorder, or nil when instrumentation is off.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	if sc.provider == nil || !sc.provider.Enabled() {
		return nil
	}
	return sc.provider.Metrics()
}

// AuditLogger returns the audit logger, or nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.auditLogger
}

// AllowWrite reports whether mail-modifying tools are enabled.
func (sc *ServerContext) AllowWrite() bool {
	return sc.allowWrite
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}

// ListenForLogin starts the login redirect receiver and returns its base URL.
// A receiver that is still waiting is reused. It stops after the first
// redirect or when the server context ends.
func (sc *ServerContext) ListenForLogin() (string, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return "", errors.New("server is shutting down")
	}
	if sc.callbackAddr == "" {
		return "", errors.New("no callback address configured")
	}
	if sc.receiver != nil {
		return sc.receiver.URL(), nil
	}

	recv, err := callback.New(callback.Config{
		Addr:      sc.callbackAddr,
		Completer: sc.session,
		Logger:    sc.logger,
		Metrics:   sc.Metrics(),
	})
	if err != nil {
		return "", err
	}
	if err := recv.Start(); err != nil {
		return "", fmt.Errorf("failed to start login receiver: %w", err)
	}
	sc.receiver = recv

	go func() {
		if err := recv.Wait(sc.ctx); err != nil && !errors.Is(err, context.Canceled) {
			sc.logger.Info("login via redirect did not complete", logging.Err(err))
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(sc.ctx), 5*time.Second)
		defer cancel()
		_ = recv.Shutdown(shutdownCtx)

		sc.mu.Lock()
		if sc.receiver == recv {
			sc.receiver = nil
		}
		sc.mu.Unlock()
	}()

	return recv.URL(), nil
}
