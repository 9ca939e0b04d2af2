package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/rflorenc/asana-automation-bridge/internal/platform"
	"github.com/rflorenc/asana-automation-bridge/internal/webhook"
)

// ConnectionConfig represents a pre-configured Asana connection in the config file.
type ConnectionConfig struct {
	Name          string `yaml:"name" json:"name"`
	AccessToken   string `yaml:"access_token" json:"access_token"`
	RefreshToken  string `yaml:"refresh_token" json:"refresh_token"`
	WebhookSecret string `yaml:"webhook_secret" json:"webhook_secret"`
}

// Validate checks that a configured connection can authenticate.
func (c ConnectionConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.AccessToken, validation.Required),
	)
}

// Config holds all configuration (CLI flags + config file).
type Config struct {
	Listen           string             `yaml:"listen" json:"listen"`
	PublicURL        string             `yaml:"public_url" json:"public_url"`
	APIBaseURL       string             `yaml:"api_base_url" json:"api_base_url"`
	LogLevel         string             `yaml:"log_level" json:"log_level"`
	LogJSON          bool               `yaml:"log_json" json:"log_json"`
	HandshakeTimeout time.Duration      `yaml:"handshake_timeout" json:"handshake_timeout"`
	RequestTimeout   time.Duration      `yaml:"request_timeout" json:"request_timeout"`
	MaxBodySize      int64              `yaml:"max_body_size" json:"max_body_size"`
	Connections      []ConnectionConfig `yaml:"connections" json:"connections"`
}

// Flags are the CLI overrides. Empty values leave the file value in place.
type Flags struct {
	ConfigFile string
	Listen     string
	PublicURL  string
	LogLevel   string
}

// Load reads the config file named in f (if any), overlays the flags and
// applies defaults. The result is validated.
func Load(f Flags) (*Config, error) {
	c := &Config{}
	if f.ConfigFile != "" {
		if err := c.loadFile(f.ConfigFile); err != nil {
			return nil, err
		}
	}

	// CLI flags take precedence over config file values.
	if f.Listen != "" {
		c.Listen = f.Listen
	}
	if f.PublicURL != "" {
		c.PublicURL = f.PublicURL
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.PublicURL == "" {
		c.PublicURL = "http://localhost" + c.Listen
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = platform.DefaultBaseURL
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = webhook.DefaultHandshakeTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = platform.DefaultTimeout
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = webhook.DefaultMaxBodySize
	}
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Listen, validation.Required),
		validation.Field(&c.PublicURL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&c.APIBaseURL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&c.LogLevel, validation.In("trace", "debug", "info", "warn", "error")),
		validation.Field(&c.HandshakeTimeout, validation.Min(time.Second)),
		validation.Field(&c.RequestTimeout, validation.Min(time.Second)),
		validation.Field(&c.MaxBodySize, validation.Min(int64(1024))),
		validation.Field(&c.Connections),
	)
}

func absoluteURL(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("must be an absolute http(s) URL")
	}
	return nil
}
