// Package config loads the exporter configuration from a TOML file, an
// optional .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	// DefaultConfigFile is read when no --config flag is given
	DefaultConfigFile = "config.toml"

	// DefaultEnvFile is loaded when present
	DefaultEnvFile = ".env"

	// DefaultTimeout for connecting and waiting for response headers
	DefaultTimeout = 30 * time.Second
)

// Environment variables that override file values
const (
	EnvURL       = "REDMINE_URL"
	EnvUser      = "REDMINE_USER"
	EnvPassword  = "REDMINE_PASSWORD"
	EnvTimeout   = "REDMINE_TIMEOUT"
	EnvUserAgent = "REDMINE_USER_AGENT"
)

// Config is the exporter configuration
type Config struct {
	Redmine RedmineConfig `toml:"redmine"`
}

// RedmineConfig holds Redmine connection settings
type RedmineConfig struct {
	// URL is the API root endpoints are appended to
	// (e.g. https://redmine.example.com/). Always ends in "/" after Load.
	URL string `toml:"url"`

	// User for HTTP Basic authentication (prompted when empty)
	User string `toml:"user"`

	// Password for HTTP Basic authentication (prompted when empty)
	Password string `toml:"password"`

	// Timeout for connecting and waiting for response headers. Response
	// bodies are not limited.
	Timeout Duration `toml:"timeout"`

	// UserAgent identifies the client to the server
	UserAgent string `toml:"user_agent"`
}

// Duration is a time.Duration read from strings like "45s"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// Load reads path (TOML) after loading envFile into the environment.
// A missing env file is ignored. A missing config file is accepted only
// when REDMINE_URL supplies the URL. Environment values override the file.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) || os.Getenv(EnvURL) == "" {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvURL); v != "" {
		c.Redmine.URL = v
	}
	if v := os.Getenv(EnvUser); v != "" {
		c.Redmine.User = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Redmine.Password = v
	}
	if v := os.Getenv(EnvUserAgent); v != "" {
		c.Redmine.UserAgent = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		if err := c.Redmine.Timeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
	}
	return nil
}

func (c *Config) normalize() error {
	raw := strings.TrimSpace(c.Redmine.URL)
	if raw == "" {
		return errors.New("redmine.url is required (config file or " + EnvURL + ")")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("redmine.url is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("redmine.url must be an http(s) URL, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("redmine.url has no host: %q", raw)
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	c.Redmine.URL = raw

	if c.Redmine.Timeout.Duration <= 0 {
		c.Redmine.Timeout.Duration = DefaultTimeout
	}
	return nil
}

// HasCredentials returns true if both user and password are set
func (c *Config) HasCredentials() bool {
	return c.Redmine.User != "" && c.Redmine.Password != ""
}
