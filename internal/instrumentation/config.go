package instrumentation

import "fmt"

// Config holds the configuration for OpenTelemetry instrumentation. The serve
// command fills it from the telemetry section of the inboxchat config.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// ServiceInstanceID defaults to the hostname.
	ServiceInstanceID string

	// Enabled false turns the provider into a no-op: no exporters are started
	// and Metrics records nothing.
	Enabled bool

	// MetricsExporter is one of prometheus, otlp or stdout.
	MetricsExporter string

	// TracingExporter is one of otlp, stdout or none.
	TracingExporter string

	// OTLPEndpoint is the collector host:port, without scheme. Required by
	// either OTLP exporter.
	OTLPEndpoint string

	// OTLPInsecure sends OTLP over plain HTTP. Traces carry endpoint names
	// and exchange ids, so keep it to local collectors.
	OTLPInsecure bool

	// TraceSamplingRate is the parent-based ratio of sampled root spans.
	TraceSamplingRate float64

	// DetailedLabels adds the user's email domain to tool metrics.
	// Keep it off in production to bound label cardinality.
	DetailedLabels bool

	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig holds configuration for audit logging of tool calls.
type AuditLoggingConfig struct {
	Enabled bool

	// IncludePII logs full email addresses instead of only their domain.
	IncludePII bool
}

// DefaultConfig returns Prometheus metrics, no tracing and audit logging
// without PII.
func DefaultConfig() Config {
	return Config{
		ServiceName:       "inboxchat",
		ServiceVersion:    "unknown",
		Enabled:           true,
		MetricsExporter:   ExporterPrometheus,
		TracingExporter:   ExporterNone,
		TraceSamplingRate: 0.1,
		AuditLogging:      AuditLoggingConfig{Enabled: true},
	}
}

// Validate checks exporter names, the sampling rate and that OTLP exporters
// have somewhere to send to.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %g", c.TraceSamplingRate)
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterStdout:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
		}
	default:
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	switch c.TracingExporter {
	case "", ExporterNone, ExporterStdout:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
		}
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	return nil
}

// Constants for metric label values.
const (
	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Chat exchange outcomes beyond success/error
	ExchangeRejected = "rejected"
	ExchangeStale    = "stale"

	// Credential wipe reasons
	WipeAuthError = "auth_error"
	WipeLogout    = "logout"
	WipeExplicit  = "explicit"

	// Exporter types
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)
