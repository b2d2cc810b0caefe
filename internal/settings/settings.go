// Package settings loads the console's own settings: where the agent backend
// lives, which transport carries its log channel, and how the console logs,
// exports metrics and traces. Values come from an optional TOML file, then
// environment variables, then command line flags.
package settings

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied when neither the file nor the environment set a value.
const (
	DefaultConfigPath  = "agentconsole.toml"
	DefaultBaseURL     = "http://localhost:8000"
	DefaultLogsPath    = "/logs"
	DefaultNATSURL     = "nats://127.0.0.1:4222"
	DefaultNATSSubject = "agent.logs"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"
)

// Log channel transports.
const (
	LogSourceWebSocket = "websocket"
	LogSourceNATS      = "nats"
)

// Settings is the root console configuration.
type Settings struct {
	Backend BackendSettings `toml:"backend"`
	Logs    LogsSettings    `toml:"logs"`
	Log     LogSettings     `toml:"log"`
	Metrics MetricsSettings `toml:"metrics"`
	OTel    OTelSettings    `toml:"otel"`
}

// BackendSettings locates the agent's HTTP API.
type BackendSettings struct {
	BaseURL string `toml:"base_url"`
	// RequestTimeout bounds each HTTP call. Zero means no timeout.
	RequestTimeout Duration `toml:"request_timeout"`
}

// LogsSettings selects the transport for the agent's log channel.
type LogsSettings struct {
	Source      string `toml:"source"`
	Path        string `toml:"path"`
	NATSURL     string `toml:"nats_url"`
	NATSSubject string `toml:"nats_subject"`
}

// LogSettings controls the console's own diagnostic log.
type LogSettings struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// MetricsSettings enables the Prometheus endpoint when Addr is set.
type MetricsSettings struct {
	Addr string `toml:"addr"`
}

// OTelSettings configures the OpenTelemetry exporters.
type OTelSettings struct {
	Enabled            bool   `toml:"enabled"`
	Endpoint           string `toml:"endpoint"`
	Protocol           string `toml:"protocol"`
	ServiceName        string `toml:"service_name"`
	ResourceAttributes string `toml:"resource_attributes"`
}

// Duration is a time.Duration that decodes from TOML strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Backend: BackendSettings{
			BaseURL: DefaultBaseURL,
		},
		Logs: LogsSettings{
			Source:      LogSourceWebSocket,
			Path:        DefaultLogsPath,
			NATSURL:     DefaultNATSURL,
			NATSSubject: DefaultNATSSubject,
		},
		Log: LogSettings{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		OTel: OTelSettings{
			Protocol:    "grpc",
			ServiceName: "agentconsole",
		},
	}
}

// Load reads the TOML file at path (a missing file is not an error when
// required is false), applies environment overrides and validates the result.
func Load(path string, required bool) (Settings, error) {
	s := Default()

	if strings.TrimSpace(path) != "" {
		if _, err := toml.DecodeFile(path, &s); err != nil {
			if !errors.Is(err, os.ErrNotExist) || required {
				return Settings{}, fmt.Errorf("loading settings %s: %w", path, err)
			}
		}
	}

	if err := s.applyEnv(); err != nil {
		return Settings{}, err
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) applyEnv() error {
	s.Backend.BaseURL = envOrDefault("AGENTCONSOLE_BASE_URL", s.Backend.BaseURL)
	if v := strings.TrimSpace(os.Getenv("AGENTCONSOLE_REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing AGENTCONSOLE_REQUEST_TIMEOUT: %w", err)
		}
		s.Backend.RequestTimeout.Duration = d
	}

	s.Logs.Source = envOrDefault("AGENTCONSOLE_LOG_SOURCE", s.Logs.Source)
	s.Logs.Path = envOrDefault("AGENTCONSOLE_LOGS_PATH", s.Logs.Path)
	s.Logs.NATSURL = envOrDefault("AGENTCONSOLE_NATS_URL", s.Logs.NATSURL)
	s.Logs.NATSSubject = envOrDefault("AGENTCONSOLE_NATS_SUBJECT", s.Logs.NATSSubject)

	s.Log.Level = envOrDefault("AGENTCONSOLE_LOG_LEVEL", s.Log.Level)
	s.Log.Format = envOrDefault("AGENTCONSOLE_LOG_FORMAT", s.Log.Format)
	s.Log.File = envOrDefault("AGENTCONSOLE_LOG_FILE", s.Log.File)

	s.Metrics.Addr = envOrDefault("AGENTCONSOLE_METRICS_ADDR", s.Metrics.Addr)

	s.OTel.Enabled = envOrDefaultBool("AGENTCONSOLE_OTEL_ENABLED", s.OTel.Enabled)
	s.OTel.Endpoint = firstNonEmpty(os.Getenv("AGENTCONSOLE_OTEL_OTLP_ENDPOINT"), os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), s.OTel.Endpoint)
	s.OTel.Protocol = firstNonEmpty(os.Getenv("AGENTCONSOLE_OTEL_OTLP_PROTOCOL"), os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"), s.OTel.Protocol)
	s.OTel.ServiceName = firstNonEmpty(os.Getenv("AGENTCONSOLE_OTEL_SERVICE_NAME"), os.Getenv("OTEL_SERVICE_NAME"), s.OTel.ServiceName)
	s.OTel.ResourceAttributes = firstNonEmpty(os.Getenv("AGENTCONSOLE_OTEL_RESOURCE_ATTRIBUTES"), os.Getenv("OTEL_RESOURCE_ATTRIBUTES"), s.OTel.ResourceAttributes)
	return nil
}

func (s *Settings) normalize() {
	s.Backend.BaseURL = NormalizeBaseURL(s.Backend.BaseURL)
	s.Logs.Source = strings.ToLower(strings.TrimSpace(s.Logs.Source))
	if s.Logs.Path == "" {
		s.Logs.Path = DefaultLogsPath
	}
	if !strings.HasPrefix(s.Logs.Path, "/") {
		s.Logs.Path = "/" + s.Logs.Path
	}
	s.Log.Level = strings.ToLower(strings.TrimSpace(s.Log.Level))
	s.Log.Format = strings.ToLower(strings.TrimSpace(s.Log.Format))
}

// Validate reports settings the console cannot run with.
func (s Settings) Validate() error {
	u, err := url.Parse(s.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid backend base_url %q: %w", s.Backend.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid backend base_url %q: scheme must be http or https", s.Backend.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid backend base_url %q: missing host", s.Backend.BaseURL)
	}
	if s.Backend.RequestTimeout.Duration < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	switch s.Logs.Source {
	case LogSourceWebSocket:
	case LogSourceNATS:
		if strings.TrimSpace(s.Logs.NATSSubject) == "" {
			return fmt.Errorf("logs.nats_subject is required when logs.source is %q", LogSourceNATS)
		}
	default:
		return fmt.Errorf("unknown logs.source %q (want %q or %q)", s.Logs.Source, LogSourceWebSocket, LogSourceNATS)
	}
	return nil
}

// NormalizeBaseURL trims whitespace and trailing slashes, and defaults a bare
// host:port or :port to plain http.
func NormalizeBaseURL(value string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(value), "/")
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, ":") {
		return "http://127.0.0.1" + trimmed
	}
	if strings.Contains(trimmed, "://") {
		return trimmed
	}
	return "http://" + trimmed
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
