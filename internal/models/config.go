package models

// Config holds the daemon configuration.
type Config struct {
	Sessions  []SessionEntry  `json:"sessions"`
	Transport TransportConfig `json:"transport"`
	Creds     CredsConfig     `json:"creds"`
	Archive   ArchiveConfig   `json:"archive"`
	Retry     RetryConfig     `json:"retry"`
	Server    ServerConfig    `json:"server"`
	Tracing   TracingConfig   `json:"tracing"`
	LogLevel  string          `json:"log_level"`
}

// TransportConfig selects the wire transport driver linked into the
// binary.
type TransportConfig struct {
	Driver string `json:"driver"`
}

// SessionEntry declares one session to start at boot.
type SessionEntry struct {
	ID     string        `json:"id"`
	Config SessionConfig `json:"config"`
}

// CredsConfig holds credential store configuration.
type CredsConfig struct {
	// Dir is the directory persisted credential blobs live in.
	Dir string `json:"dir"`
	// Encrypt enables AES-GCM encryption at rest; the key is derived from
	// the WHATSAUTO_ENCRYPTION_SECRET environment variable.
	Encrypt bool `json:"encrypt"`
}

// ArchiveConfig holds the optional message archive configuration.
type ArchiveConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
	// RetentionDays bounds how long archived messages are kept.
	RetentionDays int `json:"retentionDays"`
}

// RetryConfig holds reconnect and pairing retry configuration.
type RetryConfig struct {
	MaxReconnectAttempts int `json:"maxReconnectAttempts"`
	ReconnectDelaySec    int `json:"reconnectDelaySec"`
	MaxPairingAttempts   int `json:"maxPairingAttempts"`
	PairingRetryDelaySec int `json:"pairingRetryDelaySec"`
}

// ServerConfig holds the admin HTTP server configuration.
type ServerConfig struct {
	Port            int `json:"port"`
	ReadTimeoutSec  int `json:"readTimeoutSec"`
	WriteTimeoutSec int `json:"writeTimeoutSec"`
	IdleTimeoutSec  int `json:"idleTimeoutSec"`
}

// TracingConfig holds OpenTelemetry configuration.
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

// ConfigError reports an invalid or incomplete configuration.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
