package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Test defaults
	if cfg.Environment.File != "cohdet_aux/cohdet_env" {
		t.Errorf("expected default environment file, got %s", cfg.Environment.File)
	}

	if cfg.Catalog.Backend != "asf" {
		t.Errorf("expected default backend asf, got %s", cfg.Catalog.Backend)
	}

	if cfg.Catalog.DownloadTimeout != 2*time.Hour {
		t.Errorf("expected default download timeout 2h, got %s", cfg.Catalog.DownloadTimeout)
	}

	if cfg.GPT.Path != "gpt" {
		t.Errorf("expected default gpt path, got %s", cfg.GPT.Path)
	}

	if len(cfg.GPT.Args) != 0 {
		t.Errorf("expected no gpt args, got %q", cfg.GPT.Args)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}

	if cfg.Server.RunInterval != 0 {
		t.Errorf("expected background runs disabled, got %s", cfg.Server.RunInterval)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	t.Setenv("COHDET_ENV_FILE", "/srv/cohdet/cohdet_env")
	t.Setenv("CATALOG_BACKEND", "cmr")
	t.Setenv("CATALOG_TIMEOUT", "45s")
	t.Setenv("CMR_PROVIDER", "ASFDEV")
	t.Setenv("GPT_PATH", "/opt/snap/bin/gpt")
	t.Setenv("GPT_ARGS", "-q 4 -c 2G")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_RUN_INTERVAL", "6h")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Environment.File != "/srv/cohdet/cohdet_env" {
		t.Errorf("expected custom environment file, got %s", cfg.Environment.File)
	}

	if cfg.Catalog.Backend != "cmr" {
		t.Errorf("expected backend cmr, got %s", cfg.Catalog.Backend)
	}

	if cfg.Catalog.Timeout != 45*time.Second {
		t.Errorf("expected catalog timeout 45s, got %s", cfg.Catalog.Timeout)
	}

	if cfg.CMR.Provider != "ASFDEV" {
		t.Errorf("expected provider ASFDEV, got %s", cfg.CMR.Provider)
	}

	if want := []string{"-q", "4", "-c", "2G"}; !reflect.DeepEqual(cfg.GPT.Args, want) {
		t.Errorf("expected gpt args %q, got %q", want, cfg.GPT.Args)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}

	if cfg.Server.RunInterval != 6*time.Hour {
		t.Errorf("expected run interval 6h, got %s", cfg.Server.RunInterval)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("expected log format text, got %s", cfg.Logging.Format)
	}
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("CATALOG_BACKEND", "copernicus")

	if _, err := Load(); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func validConfig() *Config {
	return &Config{
		Environment: EnvironmentConfig{File: "cohdet_env"},
		Catalog: CatalogConfig{
			Backend:         "asf",
			Timeout:         30 * time.Second,
			DownloadTimeout: time.Hour,
		},
		CMR: CMRConfig{
			BaseURL:  "https://cmr.earthdata.nasa.gov/search",
			Provider: "ASF",
		},
		GPT: GPTConfig{Path: "gpt"},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Watch: WatchConfig{Debounce: 30 * time.Second},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantError bool
	}{
		{name: "valid config", modify: func(*Config) {}},
		{name: "valid config with CMR backend", modify: func(c *Config) { c.Catalog.Backend = "cmr" }},
		{name: "empty environment file", modify: func(c *Config) { c.Environment.File = "" }, wantError: true},
		{name: "invalid backend", modify: func(c *Config) { c.Catalog.Backend = "stac" }, wantError: true},
		{name: "zero catalog timeout", modify: func(c *Config) { c.Catalog.Timeout = 0 }, wantError: true},
		{name: "zero download timeout", modify: func(c *Config) { c.Catalog.DownloadTimeout = 0 }, wantError: true},
		{
			name: "CMR backend without URL",
			modify: func(c *Config) {
				c.Catalog.Backend = "cmr"
				c.CMR.BaseURL = ""
			},
			wantError: true,
		},
		{name: "empty gpt path", modify: func(c *Config) { c.GPT.Path = "" }, wantError: true},
		{name: "invalid port", modify: func(c *Config) { c.Server.Port = 0 }, wantError: true},
		{name: "port too large", modify: func(c *Config) { c.Server.Port = 70000 }, wantError: true},
		{name: "negative run interval", modify: func(c *Config) { c.Server.RunInterval = -time.Second }, wantError: true},
		{name: "zero debounce", modify: func(c *Config) { c.Watch.Debounce = 0 }, wantError: true},
		{name: "invalid log level", modify: func(c *Config) { c.Logging.Level = "trace" }, wantError: true},
		{name: "invalid log format", modify: func(c *Config) { c.Logging.Format = "xml" }, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestServerConfigAddress(t *testing.T) {
	tests := []struct {
		host string
		port int
		addr string
		url  string
	}{
		{"0.0.0.0", 8080, "0.0.0.0:8080", "http://localhost:8080"},
		{"127.0.0.1", 9090, "127.0.0.1:9090", "http://127.0.0.1:9090"},
		{"", 80, ":80", "http://localhost:80"},
	}

	for _, tt := range tests {
		s := &ServerConfig{Host: tt.host, Port: tt.port}
		if got := s.Address(); got != tt.addr {
			t.Errorf("Address() = %s, want %s", got, tt.addr)
		}
		if got := s.PublicURL(); got != tt.url {
			t.Errorf("PublicURL() = %s, want %s", got, tt.url)
		}
	}

	s := &ServerConfig{Host: "0.0.0.0", Port: 8080, BaseURL: "https://cohdet.example.com"}
	if got := s.PublicURL(); got != "https://cohdet.example.com" {
		t.Errorf("PublicURL() = %s, want the configured base URL", got)
	}
}
