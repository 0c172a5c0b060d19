package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxchat/internal/config"
	"github.com/teemow/inboxchat/internal/conversation"
	"github.com/teemow/inboxchat/internal/credstore"
	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/session"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath        string
	baseURL           string
	requestTimeout    string
	credentialBackend string
	credentialPath    string
	logLevel          string
	logFormat         string
	debug             bool
}

func (o *globalOptions) bindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configPath, "config", config.DefaultPath(), "Path to the config file")
	flags.StringVar(&o.baseURL, "base-url", "", "Assistant backend URL. Can also use INBOXCHAT_BASE_URL env var.")
	flags.StringVar(&o.requestTimeout, "request-timeout", "", "Timeout for each backend request (e.g. 30s). Can also use INBOXCHAT_REQUEST_TIMEOUT env var.")
	flags.StringVar(&o.credentialBackend, "credential-backend", "", "Where to keep the credential: file or sqlite. Can also use INBOXCHAT_CREDENTIAL_BACKEND env var.")
	flags.StringVar(&o.credentialPath, "credential-path", "", "Credential file or database path. Can also use INBOXCHAT_CREDENTIAL_PATH env var.")
	flags.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn or error. Can also use INBOXCHAT_LOG_LEVEL env var.")
	flags.StringVar(&o.logFormat, "log-format", "", "Log format: text or json. Can also use INBOXCHAT_LOG_FORMAT env var.")
	flags.BoolVar(&o.debug, "debug", false, "Enable debug logging")
}

// loadConfig reads the config file and environment, then applies flags.
// Flags win over the environment, which wins over the file.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.requestTimeout != "" {
		cfg.RequestTimeout = o.requestTimeout
	}
	if o.credentialBackend != "" && o.credentialBackend != cfg.Credential.Backend {
		cfg.Credential.Backend = o.credentialBackend
		if o.credentialPath == "" {
			// The default path depends on the backend.
			cfg.Credential.Path = ""
		}
	}
	if o.credentialPath != "" {
		cfg.Credential.Path = o.credentialPath
	}
	if cfg.Credential.Path == "" {
		cfg.Credential.Path = config.DefaultCredentialPath(cfg.Credential.Backend)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if o.debug {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// app is the composition root: one gateway, one session store and one
// conversation store per process.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	creds        credstore.Store
	gateway      *gateway.Client
	session      *session.Store
	conversation *conversation.Store
}

// openApp loads configuration and builds the stores. metrics may be nil.
func (o *globalOptions) openApp(ctx context.Context, metrics *instrumentation.Metrics) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, metrics)
}

func newApp(ctx context.Context, cfg *config.Config, metrics *instrumentation.Metrics) (*app, error) {
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	creds, err := credstore.Open(ctx, cfg.Credential)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	gw, err := gateway.New(ctx, gateway.Options{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout(),
		Store:   creds,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		_ = creds.Close()
		return nil, err
	}

	sess := session.New(gw, session.Options{Logger: logger, Metrics: metrics})
	conv := conversation.New(gw, conversation.Options{Gate: sess, Logger: logger, Metrics: metrics})

	return &app{
		cfg:          cfg,
		logger:       logger,
		creds:        creds,
		gateway:      gw,
		session:      sess,
		conversation: conv,
	}, nil
}

// Close releases the session subscription and the credential store.
func (a *app) Close() error {
	a.session.Close()
	return a.creds.Close()
}

// requireSession restores the session and fails when nobody is signed in.
func (a *app) requireSession(ctx context.Context) (session.State, error) {
	st := a.session.Initialize(ctx)
	if st.Status != session.StatusAuthenticated {
		return st, errNotSignedIn
	}
	return st, nil
}

var errNotSignedIn = errors.New("not signed in, run `inboxchat login` first")
