package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/poll"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultUIURL  = "https://climate-data.canada.ca"
	DefaultAPIURL = "https://api.weather.gc.ca"
)

// Config holds all settings of the CLI and the browser suite.
//
// Example YAML:
//
//	ui_url: http://localhost:8080
//	api_url: https://api.weather.gc.ca
//	log_level: debug
//	poll:
//	  timeout: 6500ms
//	  interval: 2s
//	  verbose: true
//	browser:
//	  headless: false
//	scenarios:
//	  monthly-bbox:
//	    bbox: [-80, 43, -72, 47]
type Config struct {
	// UIURL is the portal root; pages are opened relative to it
	UIURL string `yaml:"ui_url"`

	// APIURL is the OGC API - Features root serving the ahccd-* collections
	APIURL string `yaml:"api_url"`

	LogLevel string `yaml:"log_level"`

	Poll    PollConfig    `yaml:"poll"`
	Browser BrowserConfig `yaml:"browser"`
	Tracing TracingConfig `yaml:"tracing"`

	// Scenarios overrides catalog entries by scenario name
	Scenarios map[string]ScenarioOverride `yaml:"scenarios"`
}

// PollConfig mirrors poll.Config for the YAML file.
type PollConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	Interval     time.Duration `yaml:"interval"`
	Verbose      bool          `yaml:"verbose"`
	ErrorMessage string        `yaml:"error_message"`
}

// BrowserConfig controls the playwright browser used by tests/e2e.
type BrowserConfig struct {
	Headless bool `yaml:"headless"`

	// Timeout is the default timeout of page actions and navigation
	Timeout time.Duration `yaml:"timeout"`

	// DebugDir receives screenshots and HTML of failed tests
	DebugDir string `yaml:"debug_dir"`
}

// TracingConfig enables OTLP span export.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	TLSCAPath   string `yaml:"tls_ca_path"`
	TLSInsecure bool   `yaml:"tls_insecure"`
}

// ScenarioOverride adjusts one catalog scenario.
type ScenarioOverride struct {
	Skip bool `yaml:"skip"`

	// Threshold replaces the numberMatched bound
	Threshold *int `yaml:"threshold"`

	// BBox replaces the bounding box (minx, miny, maxx, maxy)
	BBox []float64 `yaml:"bbox"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		UIURL:    DefaultUIURL,
		APIURL:   DefaultAPIURL,
		LogLevel: "info",
		Poll: PollConfig{
			Timeout:      poll.DefaultTimeout,
			Interval:     poll.DefaultInterval,
			Verbose:      true,
			ErrorMessage: poll.DefaultErrorMessage,
		},
		Browser: BrowserConfig{
			Headless: true,
			Timeout:  30 * time.Second,
			DebugDir: ".tests/ui-debug",
		},
	}
}

// Load reads path on top of Default, applies environment overrides and validates.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %q: %w", path, err)
		}
		if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
			return nil, fmt.Errorf("failed to parse config from %q: %w", path, err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides URLs and the log level from E2E_UI_URL, E2E_API_URL and E2E_LOG_LEVEL.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("E2E_UI_URL"); v != "" {
		c.UIURL = v
	}
	if v := os.Getenv("E2E_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("E2E_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{"ui_url": c.UIURL, "api_url": c.APIURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return NewConfigError(fmt.Sprintf("%s must be an absolute URL, got %q", name, raw))
		}
	}

	if c.Poll.Timeout <= 0 {
		return NewConfigError("poll.timeout must be positive")
	}
	if c.Poll.Interval <= 0 {
		return NewConfigError("poll.interval must be positive")
	}
	if c.Browser.Timeout <= 0 {
		return NewConfigError("browser.timeout must be positive")
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return NewConfigError("tracing.endpoint must be set when tracing is enabled")
	}

	for name, o := range c.Scenarios {
		if o.BBox != nil && len(o.BBox) != 4 {
			return NewConfigError(fmt.Sprintf("scenarios.%s.bbox must have 4 values, got %d", name, len(o.BBox)))
		}
	}
	return nil
}

// PollConfig converts the poll section for a named probe.
func (c *Config) PollConfig(name string) poll.Config {
	return poll.Config{
		Name:         name,
		Timeout:      c.Poll.Timeout,
		Interval:     c.Poll.Interval,
		Verbose:      c.Poll.Verbose,
		ErrorMessage: c.Poll.ErrorMessage,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

func (e *ConfigError) Error() string {
	return e.message
}
