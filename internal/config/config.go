package config

import (
	"encoding/json"
	"os"

	"shelfchat/internal/constants"
	"shelfchat/internal/models"
)

var (
	ErrMissingUserID    = models.ConfigError{Message: "missing user id"}
	ErrMissingAPIURL    = models.ConfigError{Message: "missing chat API base URL"}
	ErrMissingStreamURL = models.ConfigError{Message: "missing event-stream URL"}
	ErrMissingToken     = models.ConfigError{Message: "missing API token (set SHELFCHAT_TOKEN)"}
)

// Environment variable overrides. The token is expected to arrive this way
// rather than live in the config file.
const (
	EnvAPIURL    = "SHELFCHAT_API_URL"
	EnvStreamURL = "SHELFCHAT_STREAM_URL"
	EnvToken     = "SHELFCHAT_TOKEN"
	EnvUserID    = "SHELFCHAT_USER_ID"
)

// LoadConfig reads and validates the daemon configuration.
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path) // #nosec G304 - path comes from the -config flag
	if err != nil {
		return nil, err
	}

	var cfg models.Config
	if err := json.Unmarshal(file, &cfg); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnvironmentOverrides(cfg *models.Config) {
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(EnvStreamURL); v != "" {
		cfg.Stream.URL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv(EnvUserID); v != "" {
		cfg.UserID = v
	}
}

func applyDefaults(cfg *models.Config) {
	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = constants.DefaultAPITimeoutSec
	}
	if cfg.Stream.DisconnectGraceSec <= 0 {
		cfg.Stream.DisconnectGraceSec = constants.DefaultDisconnectGraceSec
	}
	if cfg.Stream.ReconnectInitialMs <= 0 {
		cfg.Stream.ReconnectInitialMs = constants.DefaultReconnectInitialMs
	}
	if cfg.Stream.ReconnectMaxSec <= 0 {
		cfg.Stream.ReconnectMaxSec = constants.DefaultReconnectMaxSec
	}
	if cfg.Stream.ReconnectMultiplier <= 1 {
		cfg.Stream.ReconnectMultiplier = constants.DefaultReconnectMultiplier
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = constants.DefaultStatusPort
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "shelfchat"
	}
	if cfg.Tracing.SampleRate <= 0 {
		cfg.Tracing.SampleRate = 0.1
	}
}

func validate(cfg *models.Config) error {
	if cfg.UserID == "" {
		return ErrMissingUserID
	}
	if cfg.API.BaseURL == "" {
		return ErrMissingAPIURL
	}
	if cfg.Stream.URL == "" {
		return ErrMissingStreamURL
	}
	if cfg.API.Token == "" {
		return ErrMissingToken
	}
	return nil
}
