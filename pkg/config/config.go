package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultAPIURL is the analysis service used when nothing else is configured
	DefaultAPIURL = "http://localhost:3333"

	DefaultTimeout = 60 * time.Second
	DefaultTTL     = 12 * time.Hour
	DefaultFormat  = "text"
)

// Store backends
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Environment variables that override the config file
const (
	EnvAPIURL    = "HUSKYTRACE_API_URL"
	EnvStore     = "HUSKYTRACE_STORE"
	EnvRedisAddr = "HUSKYTRACE_REDIS_ADDR"
	EnvSession   = "HUSKYTRACE_SESSION"
	EnvDebug     = "HUSKYTRACE_DEBUG"
)

// Config holds the application configuration
type Config struct {
	APIURL    string            `json:"api_url,omitempty"`
	Timeout   string            `json:"timeout,omitempty"`
	Default   DefaultConfig     `json:"default,omitempty"`
	Store     StoreConfig       `json:"store"`
	Templates map[string]string `json:"templates,omitempty"`

	// Session and Debug are never persisted; they come from the environment
	// or flags.
	Session string `json:"-"`
	Debug   bool   `json:"-"`
}

// DefaultConfig holds default settings
type DefaultConfig struct {
	Format  string `json:"format,omitempty"`
	Preview *bool  `json:"preview,omitempty"` // nil means show previews
}

// StoreConfig selects where the handoff record between the intake and
// results screens lives
type StoreConfig struct {
	Backend   string `json:"backend,omitempty"`
	Path      string `json:"path,omitempty"`
	RedisAddr string `json:"redis_addr,omitempty"`
	RedisDB   int    `json:"redis_db,omitempty"`
	TTL       string `json:"ttl,omitempty"`
}

// DefaultTemplates returns the default output templates
func DefaultTemplates() map[string]string {
	return map[string]string{
		"summary": "%file_name% (%format%, %size%, %dimensions%)",
		"link":    "[%coordinates|file_name%](%map_url|preview_url%)",
		"url":     "%map_url|preview_url%",
		"compact": `{"file":"%file_name%","camera":"%camera%","taken":"%date_taken%","map":"%map_url%"}`,
		"org":     "[[%map_url|preview_url%][%camera|file_name%]]",
	}
}

// Defaults returns a config with every field set to its default
func Defaults() *Config {
	return &Config{
		APIURL:  DefaultAPIURL,
		Timeout: DefaultTimeout.String(),
		Default: DefaultConfig{Format: DefaultFormat},
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    DefaultStorePath(),
			TTL:     DefaultTTL.String(),
		},
		Templates: DefaultTemplates(),
	}
}

// Load loads configuration from the default location, then applies .env
// files and environment overrides
func Load() (*Config, error) {
	cfg, err := LoadFrom(configPath())
	if err != nil {
		return nil, err
	}
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// LoadFrom reads a config file, filling anything it leaves out with defaults.
// A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var file Config
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.merge(&file)

	return cfg, nil
}

// LoadEnvFiles loads .env from the working directory and from the config
// directory. Missing files are ignored; variables already set win.
func LoadEnvFiles() error {
	for _, path := range []string{".env", filepath.Join(configDir(), ".env")} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from environment variables
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAPIURL); v != "" {
		c.APIURL = v
	}
	if v := getenv(EnvStore); v != "" {
		c.Store.Backend = v
	}
	if v := getenv(EnvRedisAddr); v != "" {
		c.Store.RedisAddr = v
	}
	if v := getenv(EnvSession); v != "" {
		c.Session = v
	}
	// Any value but an explicit false turns debug output on
	if v := getenv(EnvDebug); v != "" {
		enabled, err := strconv.ParseBool(v)
		c.Debug = err != nil || enabled
	}
}

func (c *Config) merge(file *Config) {
	if file.APIURL != "" {
		c.APIURL = file.APIURL
	}
	if file.Timeout != "" {
		c.Timeout = file.Timeout
	}
	if file.Default.Format != "" {
		c.Default.Format = file.Default.Format
	}
	if file.Default.Preview != nil {
		c.Default.Preview = file.Default.Preview
	}
	if file.Store.Backend != "" {
		c.Store.Backend = file.Store.Backend
	}
	if file.Store.Path != "" {
		c.Store.Path = file.Store.Path
	}
	if file.Store.RedisAddr != "" {
		c.Store.RedisAddr = file.Store.RedisAddr
	}
	if file.Store.RedisDB != 0 {
		c.Store.RedisDB = file.Store.RedisDB
	}
	if file.Store.TTL != "" {
		c.Store.TTL = file.Store.TTL
	}
	// Templates from the file replace defaults of the same name
	for k, v := range file.Templates {
		c.Templates[k] = v
	}
}

// Validate checks the values that cannot be caught while parsing JSON
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("api_url is empty")
	}
	if _, err := c.RequestTimeout(); err != nil {
		return err
	}
	if _, err := c.SessionTTL(); err != nil {
		return err
	}
	switch c.Store.Backend {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q (want memory, sqlite or redis)", c.Store.Backend)
	}
	return nil
}

// RequestTimeout returns the HTTP timeout for analysis requests
func (c *Config) RequestTimeout() (time.Duration, error) {
	return parseDuration("timeout", c.Timeout, DefaultTimeout)
}

// SessionTTL returns how long a handoff record outlives its last write
func (c *Config) SessionTTL() (time.Duration, error) {
	return parseDuration("store.ttl", c.Store.TTL, DefaultTTL)
}

// IsPreviewEnabled returns whether the results screen shows an inline preview
func (c *Config) IsPreviewEnabled() bool {
	if c.Default.Preview == nil {
		return true
	}
	return *c.Default.Preview
}

// Set updates a single key, as used by `config set`
func (c *Config) Set(key, value string) error {
	switch key {
	case "api_url":
		c.APIURL = value
	case "timeout":
		if _, err := parseDuration(key, value, 0); err != nil {
			return err
		}
		c.Timeout = value
	case "format", "default.format":
		c.Default.Format = value
	case "preview", "default.preview":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		c.Default.Preview = &b
	case "store.backend":
		c.Store.Backend = value
	case "store.path":
		c.Store.Path = value
	case "store.redis_addr":
		c.Store.RedisAddr = value
	case "store.redis_db":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		c.Store.RedisDB = n
	case "store.ttl":
		if _, err := parseDuration(key, value, 0); err != nil {
			return err
		}
		c.Store.TTL = value
	default:
		if name, ok := strings.CutPrefix(key, "templates."); ok && name != "" {
			c.Templates[name] = value
			return nil
		}
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// Save saves the configuration
func (c *Config) Save() error {
	return c.SaveTo(configPath())
}

// SaveTo writes the configuration to path
func (c *Config) SaveTo(path string) error {
	// Create directory if needed
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Path returns the configuration file path
func Path() string {
	return configPath()
}

// DefaultStorePath returns the SQLite handoff database location
func DefaultStorePath() string {
	return filepath.Join(configDir(), "handoff.db")
}

func parseDuration(key, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid value for %s: must be positive", key)
	}
	return d, nil
}

func configDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "huskytrace")
}

// configPath returns the configuration file path
func configPath() string {
	return filepath.Join(configDir(), "config.json")
}
