package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadJSONC(t *testing.T) {
	content := `{
	// AI chat settings
	"gateway": {
		"host": "0.0.0.0",
		"port": 9999
	},
	"ai": {
		"timeout": "3s",
		"high_threshold": 0.9
	},
	"models": {
		"default": "openai",
		"providers": {
			"openai": {
				"driver": "openai",
				"model": "gpt-4o-mini",
				"auth": {
					"api_key": "${{ .Env.OPENAI_API_KEY }}"
				}
			}
		}
	}
}`

	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("OPENAI_API_KEY", "test-key-123")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Gateway.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %s", cfg.Gateway.Host)
	}
	if cfg.Gateway.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Gateway.Port)
	}
	if cfg.AI.Timeout.Duration() != 3*time.Second {
		t.Errorf("expected timeout 3s, got %s", cfg.AI.Timeout.Duration())
	}
	if cfg.AI.HighThreshold != 0.9 {
		t.Errorf("expected high threshold 0.9, got %f", cfg.AI.HighThreshold)
	}

	p, ok := cfg.Models.Providers["openai"]
	if !ok {
		t.Fatal("expected openai provider")
	}
	if p.Auth.APIKey != "test-key-123" {
		t.Errorf("expected api_key test-key-123, got %s", p.Auth.APIKey)
	}
}

func TestLoadYAML(t *testing.T) {
	content := `gateway:
  host: 127.0.0.1
  port: 7000
ai:
  timeout: 10s
  low_threshold: 0.4
reminders:
  enabled: true
  lookahead: 2h
`

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Gateway.Port != 7000 {
		t.Errorf("expected port 7000, got %d", cfg.Gateway.Port)
	}
	if cfg.AI.Timeout.Duration() != 10*time.Second {
		t.Errorf("expected timeout 10s, got %s", cfg.AI.Timeout.Duration())
	}
	if cfg.AI.LowThreshold != 0.4 {
		t.Errorf("expected low threshold 0.4, got %f", cfg.AI.LowThreshold)
	}
	if !cfg.Reminders.Enabled {
		t.Error("expected reminders enabled")
	}
	if cfg.Reminders.Lookahead.Duration() != 2*time.Hour {
		t.Errorf("expected lookahead 2h, got %s", cfg.Reminders.Lookahead.Duration())
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.AI.Timeout.Duration() != 5*time.Second {
		t.Errorf("expected default timeout 5s, got %s", cfg.AI.Timeout.Duration())
	}
	if cfg.AI.HighThreshold != 0.8 {
		t.Errorf("expected default high threshold 0.8, got %f", cfg.AI.HighThreshold)
	}
	if cfg.AI.LowThreshold != 0.5 {
		t.Errorf("expected default low threshold 0.5, got %f", cfg.AI.LowThreshold)
	}
	if cfg.Models.Default != "openai" {
		t.Errorf("expected default provider openai, got %s", cfg.Models.Default)
	}
	if cfg.Events.BufferSize != 1024 {
		t.Errorf("expected buffer size 1024, got %d", cfg.Events.BufferSize)
	}
	if cfg.Reminders.Cron != "* * * * *" {
		t.Errorf("expected per-minute cron, got %q", cfg.Reminders.Cron)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.jsonc"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}
