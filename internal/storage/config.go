package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes environment overrides, e.g. GSURF_HOME_URL.
const EnvPrefix = "gsurf"

// Config holds gsurf user configuration.
type Config struct {
	Theme          string   `json:"theme" envconfig:"THEME"`
	HomeURL        string   `json:"home_url" envconfig:"HOME_URL"`
	ConnectTimeout int      `json:"connect_timeout" envconfig:"CONNECT_TIMEOUT"` // seconds
	ReadTimeout    int      `json:"read_timeout" envconfig:"READ_TIMEOUT"`       // seconds
	LogLevel       string   `json:"log_level" envconfig:"LOG_LEVEL"`
	Feeds          []string `json:"feeds" envconfig:"FEEDS"`
	path           string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Theme:          "default",
		HomeURL:        "gemini://geminiprotocol.net/",
		ConnectTimeout: 10,
		ReadTimeout:    15,
		LogLevel:       "info",
		Feeds: []string{
			"gemini://geminiprotocol.net/news/",
		},
	}
}

// LoadConfig loads configuration from the standard config directory and
// applies GSURF_* environment overrides.
func LoadConfig() (*Config, error) {
	dir, err := configDir()
	if err != nil {
		return nil, err
	}
	return LoadConfigFrom(filepath.Join(dir, "config.json"))
}

// LoadConfigFrom loads configuration from path, writing the defaults there
// when the file does not exist yet.
func LoadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Save default config.
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	cfg.path = path
	cfg.validate()
	return &cfg, nil
}

// validate clamps values that would make the client unusable.
func (c *Config) validate() {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.Theme == "" {
		c.Theme = def.Theme
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// ConnectTimeoutDuration returns the connect timeout.
func (c *Config) ConnectTimeoutDuration() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

// ReadTimeoutDuration returns the read timeout.
func (c *Config) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}

// AddFeed subscribes to a gemlog. Returns false if already subscribed.
func (c *Config) AddFeed(u string) bool {
	for _, f := range c.Feeds {
		if f == u {
			return false
		}
	}
	c.Feeds = append(c.Feeds, u)
	return true
}

// Save writes the configuration to disk.
func (c *Config) Save() error {
	if c.path == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		c.path = filepath.Join(dir, "config.json")
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(c.path, data, 0o644)
}

// DataDir returns the data directory for persistent storage.
func DataDir() (string, error) {
	return appDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func configDir() (string, error) {
	return appDir("XDG_CONFIG_HOME", ".config")
}

func appDir(xdgVar, xdgFallback string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home dir: %w", err)
	}

	var dir string
	switch runtime.GOOS {
	case "darwin":
		dir = filepath.Join(home, "Library", "Application Support", "gsurf")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			dir = filepath.Join(appData, "gsurf")
		} else {
			dir = filepath.Join(home, ".gsurf")
		}
	default: // Linux, BSD, etc.
		if xdg := os.Getenv(xdgVar); xdg != "" {
			dir = filepath.Join(xdg, "gsurf")
		} else {
			dir = filepath.Join(home, xdgFallback, "gsurf")
		}
	}

	return dir, nil
}
