package models

// ConfigError indicates an invalid or incomplete configuration value.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return "config error: " + e.Message
}

type APIConfig struct {
	BaseURL    string `json:"baseUrl"`
	Token      string `json:"token,omitempty"`
	TimeoutSec int    `json:"timeoutSec,omitempty"`
}

type StreamConfig struct {
	URL                string  `json:"url"`
	DisconnectGraceSec int     `json:"disconnectGraceSec,omitempty"`
	ReconnectInitialMs int     `json:"reconnectInitialMs,omitempty"`
	ReconnectMaxSec    int     `json:"reconnectMaxSec,omitempty"`
	ReconnectMultiplier float64 `json:"reconnectMultiplier,omitempty"`
}

type StatusServerConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port,omitempty"`
}

type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName,omitempty"`
	ServiceVersion string  `json:"serviceVersion,omitempty"`
	Environment    string  `json:"environment,omitempty"`
	OTLPEndpoint   string  `json:"otlpEndpoint,omitempty"`
	SampleRate     float64 `json:"sampleRate,omitempty"`
	UseStdout      bool    `json:"useStdout,omitempty"`
}

// Config is the daemon configuration, loaded from JSON with environment
// overrides for the credential-bearing fields.
type Config struct {
	UserID   string             `json:"userId"`
	API      APIConfig          `json:"api"`
	Stream   StreamConfig       `json:"stream"`
	Server   StatusServerConfig `json:"server"`
	Tracing  TracingConfig      `json:"tracing"`
	LogLevel string             `json:"logLevel,omitempty"`
}
