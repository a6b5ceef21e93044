package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a config file, expands ${{ .Env.VAR }} templates, unmarshals it
// into Config, and applies defaults. The format is chosen by extension:
// .yaml/.yml are parsed as YAML, everything else as JSONC (comments and
// trailing commas allowed).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand env templates before parsing, since templates live inside strings.
	expanded := []byte(expandEnvTemplates(string(data)))

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	default:
		std, err := hujson.Standardize(expanded)
		if err != nil {
			return nil, fmt.Errorf("standardize config: %w", err)
		}
		if err := json.Unmarshal(std, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// Default returns a config with all defaults applied, for running without a
// config file.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 8420
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DatabasePath()
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}
	if cfg.AI.Timeout.Duration() == 0 {
		cfg.AI.Timeout = Duration(5 * time.Second)
	}
	if cfg.AI.HighThreshold == 0 {
		cfg.AI.HighThreshold = 0.8
	}
	if cfg.AI.LowThreshold == 0 {
		cfg.AI.LowThreshold = 0.5
	}
	if cfg.AI.MaxContextMessages == 0 {
		cfg.AI.MaxContextMessages = 10
	}
	if cfg.AI.ContextTasks == 0 {
		cfg.AI.ContextTasks = 20
	}
	if cfg.Reminders.Cron == "" {
		cfg.Reminders.Cron = "* * * * *"
	}
	if cfg.Reminders.Lookahead.Duration() == 0 {
		cfg.Reminders.Lookahead = Duration(time.Hour)
	}
	// Default provider: OPENAI_API_KEY from the environment, same as the CLI.
	if len(cfg.Models.Providers) == 0 {
		cfg.Models.Providers = map[string]ProviderConfig{
			"openai": {Driver: "openai", Model: "gpt-4o-mini"},
		}
	}
	if cfg.Models.Default == "" {
		if _, ok := cfg.Models.Providers["openai"]; ok {
			cfg.Models.Default = "openai"
		} else {
			for name := range cfg.Models.Providers {
				cfg.Models.Default = name
				break
			}
		}
	}
}
