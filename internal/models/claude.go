package models

import (
	"context"

	einoclaude "github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"

	"github.com/bonsai-todo/bonsai/internal/config"
)

const defaultClaudeMaxTokens = 2048

// NewClaude creates a new Anthropic Claude ChatModel.
func NewClaude(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth) (model.ToolCallingChatModel, error) {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxTokens
	}

	modelConfig := &einoclaude.Config{
		APIKey:    auth.APIKey,
		Model:     cfg.Model,
		MaxTokens: maxTokens,
	}

	if cfg.BaseURL != "" {
		baseURL := cfg.BaseURL
		modelConfig.BaseURL = &baseURL
	}

	if cfg.Options != nil {
		if temp, ok := cfg.Options["temperature"].(float64); ok {
			t := float32(temp)
			modelConfig.Temperature = &t
		}
		if topP, ok := cfg.Options["top_p"].(float64); ok {
			p := float32(topP)
			modelConfig.TopP = &p
		}
	}

	return einoclaude.NewChatModel(ctx, modelConfig)
}
