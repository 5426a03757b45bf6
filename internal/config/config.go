package config

import (
	"errors"
	"time"
)

// ErrMissingAPIToken is returned when no Replicate credential is configured.
var ErrMissingAPIToken = errors.New("the REPLICATE_API_TOKEN environment variable is not set")

// TokenEnvVar is the environment variable holding the Replicate credential.
const TokenEnvVar = "REPLICATE_API_TOKEN"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Replicate ReplicateConfig `yaml:"replicate"`
	CORS      CORSConfig      `yaml:"cors"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

type ReplicateConfig struct {
	APIToken     string            `yaml:"api_token"`
	BaseURL      string            `yaml:"base_url"`
	Timeout      time.Duration     `yaml:"timeout"`
	MaxIdleConns int               `yaml:"max_idle_conns"`
	Headers      map[string]string `yaml:"headers,omitempty"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxAge         int      `yaml:"max_age"`
}

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// Validate checks the settings the gateway cannot serve without.
func (c *Config) Validate() error {
	if c.Replicate.APIToken == "" {
		return ErrMissingAPIToken
	}
	if c.Replicate.BaseURL == "" {
		return errors.New("replicate.base_url is empty")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             3000,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     0, // streams may run for as long as the model generates
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Replicate: ReplicateConfig{
			BaseURL:      "https://api.replicate.com/v1",
			Timeout:      0,
			MaxIdleConns: 50,
		},
		CORS: CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"*"},
			MaxAge:         300,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			MetricsEnabled: true,
		},
	}
}
