package models

import (
	"fmt"
	"os"
	"strings"

	"github.com/bonsai-todo/bonsai/internal/config"
)

// ResolvedAuth holds the resolved API key for a provider.
type ResolvedAuth struct {
	APIKey string
}

// ResolveAuth resolves the credentials for a provider.
// Resolution order: direct api_key (with ${ENV_VAR} indirection) → driver
// default env var.
func ResolveAuth(cfg config.ProviderConfig) (ResolvedAuth, error) {
	apiKey := strings.TrimSpace(cfg.Auth.APIKey)
	if strings.HasPrefix(apiKey, "${") && strings.HasSuffix(apiKey, "}") {
		apiKey = os.Getenv(apiKey[2 : len(apiKey)-1])
	}
	if apiKey != "" {
		return ResolvedAuth{APIKey: apiKey}, nil
	}

	// Default env vars per driver
	switch strings.ToLower(cfg.Driver) {
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			return ResolvedAuth{APIKey: key}, nil
		}
		return ResolvedAuth{}, fmt.Errorf("OPENAI_API_KEY not set")
	case "anthropic":
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			return ResolvedAuth{APIKey: key}, nil
		}
		return ResolvedAuth{}, fmt.Errorf("ANTHROPIC_API_KEY not set")
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return ResolvedAuth{APIKey: key}, nil
		}
		return ResolvedAuth{}, fmt.Errorf("GEMINI_API_KEY not set")
	default:
		return ResolvedAuth{}, fmt.Errorf("unknown driver %q: cannot resolve auth", cfg.Driver)
	}
}
