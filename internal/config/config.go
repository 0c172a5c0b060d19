// Package config loads inboxchat configuration from an optional YAML file and
// INBOXCHAT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Credential storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Defaults.
const (
	DefaultBaseURL        = "http://localhost:8000"
	DefaultRequestTimeout = "60s"
	DefaultCallbackAddr   = "127.0.0.1:3000"
	DefaultConfirmDelay   = "1500ms"
)

// Config holds all inboxchat configuration.
type Config struct {
	// BaseURL is the assistant backend root, e.g. https://assistant.example.com
	BaseURL string `yaml:"base_url"`

	// RequestTimeout bounds every backend call; expiry is reported as a network error.
	RequestTimeout string `yaml:"request_timeout"`

	Credential CredentialConfig `yaml:"credential"`
	Callback   CallbackConfig   `yaml:"callback"`
	Log        LogConfig        `yaml:"log"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// CredentialConfig selects where the bearer credential is persisted.
type CredentialConfig struct {
	Backend string `yaml:"backend"` // file, sqlite
	Path    string `yaml:"path"`
}

// CallbackConfig configures the local redirect receiver used by `login`.
type CallbackConfig struct {
	Addr         string `yaml:"addr"`
	ConfirmDelay string `yaml:"confirm_delay"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
}

// TelemetryConfig configures metrics, tracing and the tool audit log of the
// serve command.
type TelemetryConfig struct {
	Enabled           bool    `yaml:"enabled"`
	MetricsExporter   string  `yaml:"metrics_exporter"` // prometheus, otlp, stdout
	TracingExporter   string  `yaml:"tracing_exporter"` // otlp, stdout, none
	OTLPEndpoint      string  `yaml:"otlp_endpoint"`
	OTLPInsecure      bool    `yaml:"otlp_insecure"`
	TraceSamplingRate float64 `yaml:"trace_sampling_rate"`
	DetailedLabels    bool    `yaml:"detailed_labels"`
	AuditLog          bool    `yaml:"audit_log"`
	AuditIncludePII   bool    `yaml:"audit_include_pii"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		RequestTimeout: DefaultRequestTimeout,
		Credential: CredentialConfig{
			Backend: BackendFile,
		},
		Callback: CallbackConfig{
			Addr:         DefaultCallbackAddr,
			ConfirmDelay: DefaultConfirmDelay,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Enabled:           true,
			MetricsExporter:   "prometheus",
			TracingExporter:   "none",
			TraceSamplingRate: 0.1,
			AuditLog:          true,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/inboxchat/config.yaml (or the platform
// equivalent).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "inboxchat.yaml")
	}
	return filepath.Join(dir, "inboxchat", "config.yaml")
}

// Load reads the config file at path, if it exists, and applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if cfg.Credential.Path == "" {
		cfg.Credential.Path = DefaultCredentialPath(cfg.Credential.Backend)
	}

	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	overrides := map[string]*string{
		"INBOXCHAT_BASE_URL":               &c.BaseURL,
		"INBOXCHAT_REQUEST_TIMEOUT":        &c.RequestTimeout,
		"INBOXCHAT_CREDENTIAL_BACKEND":     &c.Credential.Backend,
		"INBOXCHAT_CREDENTIAL_PATH":        &c.Credential.Path,
		"INBOXCHAT_CALLBACK_ADDR":          &c.Callback.Addr,
		"INBOXCHAT_CALLBACK_CONFIRM_DELAY": &c.Callback.ConfirmDelay,
		"INBOXCHAT_LOG_LEVEL":              &c.Log.Level,
		"INBOXCHAT_LOG_FORMAT":             &c.Log.Format,
		"INBOXCHAT_METRICS_EXPORTER":       &c.Telemetry.MetricsExporter,
		"INBOXCHAT_TRACING_EXPORTER":       &c.Telemetry.TracingExporter,
		"OTEL_EXPORTER_OTLP_ENDPOINT":      &c.Telemetry.OTLPEndpoint,
	}
	for key, field := range overrides {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}

	// Unparseable values are ignored.
	flags := map[string]*bool{
		"INBOXCHAT_TELEMETRY_ENABLED":       &c.Telemetry.Enabled,
		"OTEL_EXPORTER_OTLP_INSECURE":       &c.Telemetry.OTLPInsecure,
		"INBOXCHAT_METRICS_DETAILED_LABELS": &c.Telemetry.DetailedLabels,
		"INBOXCHAT_AUDIT_LOG":               &c.Telemetry.AuditLog,
		"INBOXCHAT_AUDIT_INCLUDE_PII":       &c.Telemetry.AuditIncludePII,
	}
	for key, field := range flags {
		if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
			*field = b
		}
	}

	if f, err := strconv.ParseFloat(os.Getenv("OTEL_TRACES_SAMPLER_ARG"), 64); err == nil {
		c.Telemetry.TraceSamplingRate = f
	}
}

// DefaultCredentialPath returns where backend keeps the credential unless
// configured otherwise.
func DefaultCredentialPath(backend string) string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	if backend == BackendSQLite {
		return filepath.Join(dir, "inboxchat", "state.db")
	}
	return filepath.Join(dir, "inboxchat", "credential.json")
}

// Timeout returns the parsed request timeout.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// ConfirmDelay returns the parsed post-login confirmation delay.
func (c *Config) ConfirmDelay() time.Duration {
	d, err := time.ParseDuration(c.Callback.ConfirmDelay)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if c.BaseURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an http(s) URL, got %q", c.BaseURL)
	}

	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return fmt.Errorf("invalid request_timeout %q: %w", c.RequestTimeout, err)
	}
	if d <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", d)
	}

	switch c.Credential.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unknown credential backend %q, must be one of: file, sqlite", c.Credential.Backend)
	}

	if c.Callback.ConfirmDelay != "" {
		if _, err := time.ParseDuration(c.Callback.ConfirmDelay); err != nil {
			return fmt.Errorf("invalid callback.confirm_delay %q: %w", c.Callback.ConfirmDelay, err)
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q, must be one of: text, json", c.Log.Format)
	}

	return nil
}
