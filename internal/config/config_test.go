package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewConfigDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Console.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Console.Version)
	}
	if c.BaseURL() != defaultBaseURL {
		t.Fatalf("expected default base URL %q, got %q", defaultBaseURL, c.BaseURL())
	}
	if c.AuditPageLimit() != defaultAuditPageLimit {
		t.Fatalf("expected default page limit %d, got %d", defaultAuditPageLimit, c.AuditPageLimit())
	}
	if c.ProcessTimeout() != 90*time.Second {
		t.Fatalf("expected 90s process timeout, got %s", c.ProcessTimeout())
	}
}

func TestNewConfigParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	consoleDir := filepath.Join(projectDir, ConsoleDir)
	if err := os.MkdirAll(consoleDir, 0755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
service:
  base_url: https://appeals.example.com/api/v1/
  request_timeout_seconds: 5
  process_timeout_seconds: 120
audit:
  page_limit: 25
`)
	if err := os.WriteFile(filepath.Join(consoleDir, "config.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.BaseURL() != "https://appeals.example.com/api/v1" {
		t.Fatalf("expected trailing slash trimmed, got %q", c.BaseURL())
	}
	if c.RequestTimeout() != 5*time.Second {
		t.Fatalf("wrong request timeout: %s", c.RequestTimeout())
	}
	if c.ProcessTimeout() != 120*time.Second {
		t.Fatalf("wrong process timeout: %s", c.ProcessTimeout())
	}
	if c.AuditPageLimit() != 25 {
		t.Fatalf("wrong page limit: %d", c.AuditPageLimit())
	}
}

func TestNewConfigEnvOverride(t *testing.T) {
	projectDir := t.TempDir()
	t.Setenv("CLAIMPILOT_API_URL", "http://127.0.0.1:9999/api/v1")
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.BaseURL() != "http://127.0.0.1:9999/api/v1" {
		t.Fatalf("expected env override, got %q", c.BaseURL())
	}
}

func TestNewConfigNormalizesInvalidValues(t *testing.T) {
	projectDir := t.TempDir()
	consoleDir := filepath.Join(projectDir, ConsoleDir)
	if err := os.MkdirAll(consoleDir, 0755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
service:
  base_url: ""
  request_timeout_seconds: -3
audit:
  page_limit: 0
`)
	if err := os.WriteFile(filepath.Join(consoleDir, "config.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.BaseURL() != defaultBaseURL {
		t.Fatalf("expected default base URL, got %q", c.BaseURL())
	}
	if c.RequestTimeout() != defaultRequestTimeoutSeconds*time.Second {
		t.Fatalf("expected default request timeout, got %s", c.RequestTimeout())
	}
	if c.AuditPageLimit() != defaultAuditPageLimit {
		t.Fatalf("expected default page limit, got %d", c.AuditPageLimit())
	}
}

func TestInitConsoleDirWritesDefaultConfig(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitConsoleDir(projectDir); err != nil {
		t.Fatalf("InitConsoleDir returned error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(projectDir, ConsoleDir, "config.yaml"))
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if !strings.Contains(string(data), "base_url") {
		t.Fatalf("default config missing service section: %s", data)
	}
	if _, err := os.Stat(filepath.Join(projectDir, ConsoleDir, "logs")); err != nil {
		t.Fatalf("logs dir not created: %v", err)
	}
}

func TestSetBaseURLPersists(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitConsoleDir(projectDir); err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetBaseURL("http://10.0.0.5:1500/api/v1"); err != nil {
		t.Fatalf("SetBaseURL returned error: %v", err)
	}
	reloaded, err := NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.BaseURL() != "http://10.0.0.5:1500/api/v1" {
		t.Fatalf("expected persisted base URL, got %q", reloaded.BaseURL())
	}
	if err := c.SetBaseURL("  "); err == nil {
		t.Fatalf("expected error for blank base URL")
	}
}
