package models

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"

	"github.com/bonsai-todo/bonsai/internal/config"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	ollamaProviderName   = "ollama"

	// The interpreter budgets a few seconds per call; 30s is the outer bound
	// for slow local models, not the expected latency.
	defaultOllamaTimeout = 30 * time.Second
)

// NewOllama creates an Ollama ChatModel. No auth: the daemon is local.
func NewOllama(ctx context.Context, cfg config.ProviderConfig) (model.ToolCallingChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}

	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = defaultOllamaTimeout
	}

	modelConfig := &einoollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   cfg.Model,
		Timeout: timeout,
		Options: ollamaOptions(cfg),
		// The daemon (or a reverse proxy in front of it) can answer with
		// plain text like "no available server"; the wrapping transport
		// turns those into ErrModelUnavailable instead of a JSON parse error.
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: &ollamaTransport{inner: http.DefaultTransport},
		},
	}

	return einoollama.NewChatModel(ctx, modelConfig)
}

// ollamaOptions maps provider config onto Ollama sampling options.
func ollamaOptions(cfg config.ProviderConfig) *einoollama.Options {
	opts := &einoollama.Options{}

	if cfg.MaxTokens > 0 {
		opts.NumPredict = cfg.MaxTokens
	}

	if temp, ok := cfg.Options["temperature"].(float64); ok {
		opts.Temperature = float32(temp)
	}
	if numCtx, ok := cfg.Options["num_ctx"].(float64); ok {
		opts.NumCtx = int(numCtx)
	}
	if numPredict, ok := cfg.Options["num_predict"].(float64); ok {
		opts.NumPredict = int(numPredict)
	}
	if topP, ok := cfg.Options["top_p"].(float64); ok {
		opts.TopP = float32(topP)
	}
	if topK, ok := cfg.Options["top_k"].(float64); ok {
		opts.TopK = int(topK)
	}

	return opts
}

// ollamaTransport rejects responses that cannot be Ollama JSON: error status
// codes and non-JSON content types both become ErrModelUnavailable carrying
// the raw body.
type ollamaTransport struct {
	inner http.RoundTripper
}

func (t *ollamaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, &ErrModelUnavailable{Provider: ollamaProviderName, Cause: err}
	}

	if resp.StatusCode >= 400 {
		return nil, unavailableFromBody(resp)
	}

	// Ollama answers application/json, or application/x-ndjson when streaming.
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "json") {
		return nil, unavailableFromBody(resp)
	}

	return resp, nil
}

func unavailableFromBody(resp *http.Response) *ErrModelUnavailable {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	resp.Body.Close()
	return &ErrModelUnavailable{
		Provider: ollamaProviderName,
		Body:     strings.TrimSpace(string(body)),
	}
}
