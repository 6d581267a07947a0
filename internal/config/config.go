// Package config loads the source catalogue and runtime settings.
//
// Settings come from a YAML file (the embedded default when no path is
// given). Before env overrides are applied, .env files are loaded:
// ENV_FILE if set, otherwise .env.local and then .env.
package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"grantwatch/pkg/logger"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// Fetch modes.
const (
	FetchHTTP    = "http"
	FetchBrowser = "browser"
)

type Source struct {
	Name     string   `yaml:"name"`
	URL      string   `yaml:"url"`
	Fetch    string   `yaml:"fetch"`
	Keywords []string `yaml:"keywords"`
}

type Database struct {
	Path string `yaml:"path"`
}

type Schedule struct {
	Cron        string `yaml:"cron"`
	Concurrency int    `yaml:"concurrency"`
}

type HTTP struct {
	Timeout      time.Duration `yaml:"timeout"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	UserAgents   []string      `yaml:"user_agents"`
}

type Browser struct {
	Enabled    bool          `yaml:"enabled"`
	ChromePath string        `yaml:"chrome_path"`
	Timeout    time.Duration `yaml:"timeout"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Database Database      `yaml:"database"`
	Logging  logger.Config `yaml:"logging"`
	Schedule Schedule      `yaml:"schedule"`
	HTTP     HTTP          `yaml:"http"`
	Browser  Browser       `yaml:"browser"`
	Server   Server        `yaml:"server"`
	Sources  []Source      `yaml:"sources"`
}

// Environment overrides.
const (
	EnvConfigPath = "CONFIG_PATH"
	EnvDBPath     = "GRANTWATCH_DB_PATH"
	EnvLogLevel   = "GRANTWATCH_LOG_LEVEL"
	EnvSchedule   = "GRANTWATCH_SCHEDULE"
	EnvServerAddr = "GRANTWATCH_SERVER_ADDR"
)

const (
	defaultDBPath       = "data/grants.db"
	defaultCron         = "0 */6 * * *"
	defaultConcurrency  = 4
	defaultTimeout      = 20 * time.Second
	defaultDialTimeout  = 5 * time.Second
	defaultMaxBodyBytes = 5 << 20
	defaultBrowserWait  = 45 * time.Second
	defaultServerAddr   = ":8080"
)

// Load reads the config at path, or CONFIG_PATH, or the embedded default.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = defaultConfigFS.ReadFile("default_config.yaml")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, fills defaults, applies env overrides and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	cfg.setDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFiles() error {
	if f := os.Getenv("ENV_FILE"); f != "" {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
		return nil
	}
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = defaultDBPath
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = defaultCron
	}
	if c.Schedule.Concurrency <= 0 {
		c.Schedule.Concurrency = defaultConcurrency
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = defaultTimeout
	}
	if c.HTTP.DialTimeout <= 0 {
		c.HTTP.DialTimeout = defaultDialTimeout
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.Browser.Timeout <= 0 {
		c.Browser.Timeout = defaultBrowserWait
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultServerAddr
	}
	for i := range c.Sources {
		if c.Sources[i].Fetch == "" {
			c.Sources[i].Fetch = FetchHTTP
		}
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvSchedule); v != "" {
		c.Schedule.Cron = v
	}
	if v := os.Getenv(EnvServerAddr); v != "" {
		c.Server.Addr = v
	}
}

// Validate checks the source catalogue and logging settings.
func (c *Config) Validate() error {
	if !logger.KnownLevel(c.Logging.Level) {
		return &ValidationError{Field: "logging.level", Message: "must be one of: debug, info, warn, error"}
	}
	seen := make(map[string]string, len(c.Sources))
	for i, s := range c.Sources {
		field := fmt.Sprintf("sources[%d]", i)
		if strings.TrimSpace(s.Name) == "" {
			return &ValidationError{Field: field + ".name", Message: "is required"}
		}
		field = fmt.Sprintf("sources[%s]", s.Name)
		u, err := url.Parse(s.URL)
		if s.URL == "" || err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return &ValidationError{Field: field + ".url", Message: "must be an http or https URL"}
		}
		if other, dup := seen[s.URL]; dup {
			return &ValidationError{Field: field + ".url", Message: "duplicates source " + other}
		}
		seen[s.URL] = s.Name
		if s.Fetch != FetchHTTP && s.Fetch != FetchBrowser {
			return &ValidationError{Field: field + ".fetch", Message: "must be http or browser"}
		}
		if !hasKeyword(s.Keywords) {
			return &ValidationError{Field: field + ".keywords", Message: "needs at least one non-blank keyword"}
		}
	}
	return nil
}

func hasKeyword(kws []string) bool {
	for _, k := range kws {
		if strings.TrimSpace(k) != "" {
			return true
		}
	}
	return false
}

// NeedsBrowser reports whether any source is fetched with the headless browser.
func (c *Config) NeedsBrowser() bool {
	for _, s := range c.Sources {
		if s.Fetch == FetchBrowser {
			return true
		}
	}
	return false
}
