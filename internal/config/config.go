// internal/config/config.go
//
// This package handles configuration and the .claimpilot directory structure.
// Every machine the console runs from gets a .claimpilot/ folder created in
// the working directory, holding config.yaml and the session logs.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ConsoleDir is the name of the directory we create per project.
	ConsoleDir = ".claimpilot"

	defaultBaseURL               = "http://localhost:1500/api/v1"
	defaultRequestTimeoutSeconds = 10
	defaultProcessTimeoutSeconds = 90
	defaultAuditPageLimit        = 50
)

const defaultConfigYAML = `# claimpilot console configuration
version: 1

service:
  # Base URL of the appeal service, including the API prefix.
  base_url: http://localhost:1500/api/v1
  # Timeout in seconds for ordinary resource calls.
  request_timeout_seconds: 10
  # Timeout in seconds for the synchronous claim-processing call.
  # The agent workflow typically takes 8-15 seconds.
  process_timeout_seconds: 90

audit:
  # Maximum number of audit entries fetched per page.
  page_limit: 50
`

// ServiceConfig captures how the console reaches the appeal service.
type ServiceConfig struct {
	BaseURL               string `yaml:"base_url"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	ProcessTimeoutSeconds int    `yaml:"process_timeout_seconds"`
}

// AuditConfig captures audit-trail viewing preferences.
type AuditConfig struct {
	PageLimit int `yaml:"page_limit"`
}

// ConsoleConfig models .claimpilot/config.yaml.
type ConsoleConfig struct {
	Version int           `yaml:"version"`
	Service ServiceConfig `yaml:"service"`
	Audit   AuditConfig   `yaml:"audit"`
}

// Config holds the runtime configuration for the console.
type Config struct {
	// ProjectDir is the directory the operator ran `claimpilot` from.
	ProjectDir string

	// ConsoleProjectDir is ProjectDir/.claimpilot.
	ConsoleProjectDir string

	Console ConsoleConfig
}

// InitConsoleDir creates the .claimpilot directory structure in the given
// project directory. Called on startup before the TUI launches.
//
// Structure created:
// .claimpilot/
// ├── config.yaml   <- Service endpoint and viewer preferences
// └── logs/         <- Session journal
func InitConsoleDir(projectDir string) error {
	consoleDir := filepath.Join(projectDir, ConsoleDir)
	if err := os.MkdirAll(filepath.Join(consoleDir, "logs"), 0755); err != nil {
		return err
	}
	return ensureConsoleConfig(filepath.Join(consoleDir, "config.yaml"))
}

// NewConfig creates a Config populated from .claimpilot/config.yaml plus
// environment overrides.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:        projectDir,
		ConsoleProjectDir: filepath.Join(projectDir, ConsoleDir),
		Console:           defaultConsoleConfig(),
	}
	if err := cfg.loadConsoleConfig(); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	cfg.normalize()
	return cfg, nil
}

// LogsDir returns the path to the session logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.ConsoleProjectDir, "logs")
}

// ConfigPath returns the on-disk location of the config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.ConsoleProjectDir, "config.yaml")
}

// BaseURL returns the appeal service root the console talks to.
func (c *Config) BaseURL() string {
	return c.Console.Service.BaseURL
}

// RequestTimeout returns the per-request timeout for ordinary calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Console.Service.RequestTimeoutSeconds) * time.Second
}

// ProcessTimeout returns the timeout for the claim-processing call.
func (c *Config) ProcessTimeout() time.Duration {
	return time.Duration(c.Console.Service.ProcessTimeoutSeconds) * time.Second
}

// AuditPageLimit returns the audit fetch cap.
func (c *Config) AuditPageLimit() int {
	return c.Console.Audit.PageLimit
}

// SetBaseURL updates the service URL and persists it back to config.yaml.
func (c *Config) SetBaseURL(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("config: service base URL is required")
	}
	c.Console.Service.BaseURL = url
	return c.saveConsoleConfig()
}

func (c *Config) loadConsoleConfig() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	parsed := defaultConsoleConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.Console = parsed
	return nil
}

func (c *Config) saveConsoleConfig() error {
	data, err := yaml.Marshal(c.Console)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	path := c.ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: ensure %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if url := strings.TrimSpace(os.Getenv("CLAIMPILOT_API_URL")); url != "" {
		c.Console.Service.BaseURL = url
	}
}

func (c *Config) normalize() {
	svc := &c.Console.Service
	svc.BaseURL = strings.TrimRight(strings.TrimSpace(svc.BaseURL), "/")
	if svc.BaseURL == "" {
		svc.BaseURL = defaultBaseURL
	}
	if svc.RequestTimeoutSeconds <= 0 {
		svc.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	if svc.ProcessTimeoutSeconds <= 0 {
		svc.ProcessTimeoutSeconds = defaultProcessTimeoutSeconds
	}
	if c.Console.Audit.PageLimit <= 0 {
		c.Console.Audit.PageLimit = defaultAuditPageLimit
	}
}

func defaultConsoleConfig() ConsoleConfig {
	return ConsoleConfig{
		Version: 1,
		Service: ServiceConfig{
			BaseURL:               defaultBaseURL,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			ProcessTimeoutSeconds: defaultProcessTimeoutSeconds,
		},
		Audit: AuditConfig{PageLimit: defaultAuditPageLimit},
	}
}

func ensureConsoleConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0644); err != nil {
		return fmt.Errorf("config: write default %s: %w", path, err)
	}
	return nil
}
