// Package config loads the client configuration from YAML with sane defaults
// for every field, so a missing config file still yields a runnable client.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Directory DirectoryConfig `yaml:"directory"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// TransportConfig holds WebSocket connection settings. URL wins when set;
// otherwise the port file is polled to discover a locally spawned backend.
type TransportConfig struct {
	URL           string        `yaml:"url"`
	PortFile      string        `yaml:"port_file"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// DirectoryConfig holds settings for the conversation directory HTTP API.
type DirectoryConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	ListLimit int           `yaml:"list_limit"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stdout, stderr, or a file path
}

// TracerConfig holds OpenTelemetry settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // stdout or noop
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	return &Config{
		Transport: TransportConfig{
			URL:           "ws://127.0.0.1:8765/ws",
			ReconnectWait: 3 * time.Second,
		},
		Directory: DirectoryConfig{
			BaseURL:   "http://127.0.0.1:8765",
			Timeout:   10 * time.Second,
			ListLimit: 50,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads the config file at path, layered over Defaults. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot work.
func Validate(cfg *Config) error {
	if cfg.Transport.URL == "" && cfg.Transport.PortFile == "" {
		return fmt.Errorf("config: transport needs url or port_file")
	}
	if cfg.Transport.ReconnectWait < 0 {
		return fmt.Errorf("config: reconnect_wait must not be negative")
	}
	if cfg.Directory.BaseURL == "" {
		return fmt.Errorf("config: directory.base_url is required")
	}
	if cfg.Directory.ListLimit <= 0 {
		return fmt.Errorf("config: directory.list_limit must be positive")
	}
	switch cfg.Logger.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unsupported logger format %q", cfg.Logger.Format)
	}
	return nil
}
