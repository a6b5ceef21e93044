// Package callbacks provides Eino callback handlers that bridge to the event bus.
package callbacks

import (
	"context"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	ub "github.com/cloudwego/eino/utils/callbacks"

	"github.com/bonsai-todo/bonsai/internal/events"
)

// NewEventBusHandler creates a callback handler that publishes model call
// events to the bus. Install it globally so every interpretation request is
// visible on the event stream.
func NewEventBusHandler(bus *events.Bus) callbacks.Handler {
	publish := func(payload map[string]any) {
		bus.Publish(events.NewEvent(events.EventModelCall, events.SourceChat, payload))
	}

	modelHandler := &ub.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *callbacks.RunInfo, input *model.CallbackInput) context.Context {
			publish(map[string]any{
				"phase":         "request",
				"model":         info.Name,
				"message_count": len(input.Messages),
			})
			return ctx
		},

		OnEnd: func(ctx context.Context, info *callbacks.RunInfo, output *model.CallbackOutput) context.Context {
			payload := map[string]any{
				"phase": "response",
				"model": info.Name,
			}
			if output.Message != nil && output.Message.ResponseMeta != nil && output.Message.ResponseMeta.Usage != nil {
				payload["tokens_input"] = output.Message.ResponseMeta.Usage.PromptTokens
				payload["tokens_output"] = output.Message.ResponseMeta.Usage.CompletionTokens
			}
			publish(payload)
			return ctx
		},

		OnError: func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			publish(map[string]any{
				"phase": "error",
				"model": info.Name,
				"error": truncatePayload(err.Error(), 1000),
			})
			return ctx
		},
	}

	return ub.NewHandlerHelper().
		ChatModel(modelHandler).
		Handler()
}

func truncatePayload(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "... (truncated)"
}
