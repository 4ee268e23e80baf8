// Package config provides process configuration for cohdet, loaded from
// environment variables. Pipeline settings (directories, credentials, the
// observation window) live in the environment file, not here.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the complete process configuration loaded from environment variables.
type Config struct {
	Environment EnvironmentConfig `envPrefix:"COHDET_"`
	Catalog     CatalogConfig     `envPrefix:"CATALOG_"`
	CMR         CMRConfig         `envPrefix:"CMR_"`
	GPT         GPTConfig         `envPrefix:"GPT_"`
	Server      ServerConfig      `envPrefix:"SERVER_"`
	Watch       WatchConfig       `envPrefix:"WATCH_"`
	Logging     LoggingConfig     `envPrefix:"LOG_"`
}

// EnvironmentConfig locates the environment file.
type EnvironmentConfig struct {
	File string `env:"ENV_FILE" envDefault:"cohdet_aux/cohdet_env"`
}

// CatalogConfig contains catalog and download configuration.
type CatalogConfig struct {
	// Backend specifies which catalog to query: "asf" or "cmr"
	Backend string `env:"BACKEND" envDefault:"asf"`
	// URL overrides the environment file's service_url for the ASF backend.
	URL             string        `env:"URL" envDefault:""`
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"30s"`
	DownloadTimeout time.Duration `env:"DOWNLOAD_TIMEOUT" envDefault:"2h"`
	// AuthHost is the only host download credentials are sent to.
	AuthHost string `env:"AUTH_HOST" envDefault:"urs.earthdata.nasa.gov"`
}

// CMRConfig contains CMR API client configuration.
type CMRConfig struct {
	BaseURL  string `env:"BASE_URL" envDefault:"https://cmr.earthdata.nasa.gov/search"`
	Provider string `env:"PROVIDER" envDefault:"ASF"`
}

// GPTConfig configures the processing tool.
type GPTConfig struct {
	Path string `env:"PATH" envDefault:"gpt"`
	// ParametersFile is a YAML parameter profile; empty uses the built-in
	// parameter sets.
	ParametersFile string `env:"PARAMETERS_FILE" envDefault:""`
	// Args are extra gpt options, e.g. "-q 4 -c 2G".
	Args []string `env:"ARGS" envDefault:"" envSeparator:" "`
}

// ServerConfig contains status API configuration.
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// BaseURL is the public-facing URL; empty derives it from Host and Port.
	BaseURL string `env:"BASE_URL" envDefault:""`
	Title   string `env:"TITLE" envDefault:"cohdet"`
	// RunInterval runs the pipeline periodically in the background; zero
	// disables it.
	RunInterval time.Duration `env:"RUN_INTERVAL" envDefault:"0s"`
}

// WatchConfig configures the raw-directory watcher.
type WatchConfig struct {
	// Debounce is how long the raw directory must stay quiet before a pass
	// starts.
	Debounce time.Duration `env:"DEBOUNCE" envDefault:"30s"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load parses configuration from environment variables.
// It returns an error if required fields are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}

	opts := env.Options{
		RequiredIfNoDef: true,
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment.File == "" {
		return fmt.Errorf("environment file path is required")
	}

	// Validate catalog config
	if c.Catalog.Backend != "asf" && c.Catalog.Backend != "cmr" {
		return fmt.Errorf("catalog backend must be 'asf' or 'cmr', got %q", c.Catalog.Backend)
	}

	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog timeout must be positive, got %s", c.Catalog.Timeout)
	}

	if c.Catalog.DownloadTimeout <= 0 {
		return fmt.Errorf("download timeout must be positive, got %s", c.Catalog.DownloadTimeout)
	}

	if c.Catalog.Backend == "cmr" && c.CMR.BaseURL == "" {
		return fmt.Errorf("CMR base URL is required")
	}

	if c.GPT.Path == "" {
		return fmt.Errorf("gpt path is required")
	}

	// Validate server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive, got %s", c.Server.ReadTimeout)
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive, got %s", c.Server.WriteTimeout)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}

	if c.Server.RunInterval < 0 {
		return fmt.Errorf("run interval must not be negative, got %s", c.Server.RunInterval)
	}

	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch debounce must be positive, got %s", c.Watch.Debounce)
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, text", c.Logging.Format)
	}

	return nil
}

// Address returns the server listen address in the format "host:port".
func (s *ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// PublicURL returns BaseURL, or a URL derived from the listen address.
func (s *ServerConfig) PublicURL() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	host := s.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(s.Port))
}
