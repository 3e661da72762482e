package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rflorenc/facility-workbench/internal/models"
	"github.com/rflorenc/facility-workbench/internal/resources"
)

// AppName names the xdg config directory.
const AppName = "facility-workbench"

// TokenEnv holds an optional static bearer token for the backend.
const TokenEnv = "FACILITY_BACKEND_TOKEN"

// BackendConfig is the backend section of the config file.
type BackendConfig struct {
	Name      string `yaml:"name"`
	Scheme    string `yaml:"scheme"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	APIPrefix string `yaml:"api_prefix"`
	Insecure  bool   `yaml:"insecure"`
	CACert    string `yaml:"ca_cert"`
}

// Config holds all configuration (CLI flags + config file + environment).
type Config struct {
	Listen          string                        `yaml:"listen"`
	Dev             bool                          `yaml:"-"`
	WebDir          string                        `yaml:"web_dir"`
	PageSize        int                           `yaml:"page_size"`
	NotificationTTL time.Duration                 `yaml:"notification_ttl"`
	ScreenIdle      time.Duration                 `yaml:"screen_idle"`
	CSRFKey         string                        `yaml:"csrf_key"`
	LogLevel        string                        `yaml:"log_level"`
	Backend         BackendConfig                 `yaml:"backend"`
	Resources       map[string]resources.Override `yaml:"resources"`

	// Token comes from the environment only.
	Token string `yaml:"-"`

	// internal: path to config file (from CLI flag)
	configFile string
	backendURL string
}

// Parse reads flags from args, then overlays the config file and the
// environment. CLI flags take precedence over config file values.
func Parse(name string, args []string) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	c := &Config{}
	fs.StringVar(&c.configFile, "config", "", "Path to config file (YAML)")
	fs.StringVar(&c.Listen, "listen", "", "HTTP listen address")
	fs.BoolVar(&c.Dev, "dev", false, "Dev mode (proxy frontend to Vite dev server)")
	fs.StringVar(&c.WebDir, "web-dir", "", "Directory with the built dashboard")
	fs.IntVar(&c.PageSize, "page-size", 0, "Rows per page for every resource")
	fs.StringVar(&c.backendURL, "backend", "", "Backend API base URL, e.g. https://api.example.com/api")
	fs.StringVar(&c.LogLevel, "log-level", "", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	path := c.configFile
	if path == "" {
		path = DefaultPath()
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	if path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}
	if c.backendURL != "" {
		b, err := ParseBackendURL(c.backendURL)
		if err != nil {
			return nil, err
		}
		c.Backend = b
	}
	c.Token = os.Getenv(TokenEnv)

	c.applyDefaults()
	return c, nil
}

// DefaultPath is the config file used when --config is not given.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// loadFile reads a YAML config file. Values from the file are only applied
// if the corresponding CLI flag was not explicitly set.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if c.Listen == "" {
		c.Listen = file.Listen
	}
	if c.WebDir == "" {
		c.WebDir = file.WebDir
	}
	if c.PageSize == 0 {
		c.PageSize = file.PageSize
	}
	if c.LogLevel == "" {
		c.LogLevel = file.LogLevel
	}
	c.NotificationTTL = file.NotificationTTL
	c.ScreenIdle = file.ScreenIdle
	c.CSRFKey = file.CSRFKey
	c.Backend = file.Backend

	// Resource overrides always come from the config file
	c.Resources = file.Resources
	return nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.PageSize < 0 {
		c.PageSize = 0
	}
	if c.NotificationTTL <= 0 {
		c.NotificationTTL = 3 * time.Second
	}
	if c.ScreenIdle <= 0 {
		c.ScreenIdle = 30 * time.Minute
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Backend.Host == "" {
		c.Backend.Scheme, c.Backend.Host, c.Backend.Port = "http", "localhost", 8000
	}
	if c.Backend.APIPrefix == "" {
		c.Backend.APIPrefix = "/api"
	}
}

// ModelBackend converts the backend section for the HTTP client.
func (c *Config) ModelBackend() *models.Backend {
	b := &models.Backend{
		Name:      c.Backend.Name,
		Scheme:    c.Backend.Scheme,
		Host:      c.Backend.Host,
		Port:      c.Backend.Port,
		APIPrefix: c.Backend.APIPrefix,
		Insecure:  c.Backend.Insecure,
		CACert:    c.Backend.CACert,
		Token:     c.Token,
	}
	b.ApplyDefaults()
	return b
}
