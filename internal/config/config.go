package config

import "time"

// Config is the root configuration for the Bonsai backend.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway" yaml:"gateway"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Models    ModelsConfig    `json:"models" yaml:"models"`
	AI        AIConfig        `json:"ai" yaml:"ai"`
	Events    EventsConfig    `json:"events" yaml:"events"`
	Reminders RemindersConfig `json:"reminders" yaml:"reminders"`
}

// GatewayConfig holds the HTTP server settings.
type GatewayConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// StorageConfig holds the SQLite store settings.
type StorageConfig struct {
	Path string `json:"path" yaml:"path"` // database file (default: $BONSAI_PATH/bonsai.db)
}

// ModelsConfig holds model provider configuration.
type ModelsConfig struct {
	Default   string                    `json:"default" yaml:"default"`
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	Driver    string         `json:"driver" yaml:"driver"` // "openai", "anthropic", "gemini", "ollama"
	Model     string         `json:"model" yaml:"model"`
	BaseURL   string         `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Auth      AuthConfig     `json:"auth" yaml:"auth"`
	MaxTokens int            `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Timeout   Duration       `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Options   map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// AuthConfig configures API key resolution for a provider.
type AuthConfig struct {
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"` // direct key, ${ENV_VAR}, or ${{ .Env.VAR }} template
}

// AIConfig holds the interpretation pipeline settings.
// Confidence >= HighThreshold executes immediately, [Low, High) asks for
// confirmation, < LowThreshold falls back to a CLI suggestion.
type AIConfig struct {
	Timeout            Duration `json:"timeout" yaml:"timeout"`
	HighThreshold      float64  `json:"high_threshold" yaml:"high_threshold"`
	LowThreshold       float64  `json:"low_threshold" yaml:"low_threshold"`
	MaxContextMessages int      `json:"max_context_messages" yaml:"max_context_messages"`
	ContextTasks       int      `json:"context_tasks" yaml:"context_tasks"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size" yaml:"buffer_size"`
}

// RemindersConfig holds the due-task reminder scanner settings.
type RemindersConfig struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Cron      string   `json:"cron" yaml:"cron"`           // scan schedule (default: every minute)
	Lookahead Duration `json:"lookahead" yaml:"lookahead"` // how far ahead a due date counts as due soon
}

// Duration wraps time.Duration for JSON and YAML unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}
