// Package chat orchestrates the message pipeline: interpret the user's text,
// gate on confidence, execute or fall back, and record both turns of the
// conversation.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/bonsai-todo/bonsai/internal/ai"
	"github.com/bonsai-todo/bonsai/internal/conversations"
	"github.com/bonsai-todo/bonsai/internal/events"
	"github.com/bonsai-todo/bonsai/internal/tasks"
)

// Interpreter turns a user message into a structured command. Implemented by
// ai.Interpreter; nil means no AI provider is configured.
type Interpreter interface {
	Interpret(ctx context.Context, message string, history []*schema.Message, userTasks []ai.TaskContext) *ai.Command
}

// Options tune the orchestrator's context windows.
type Options struct {
	// MaxContextMessages is how many prior turns accompany each
	// interpretation request.
	MaxContextMessages int
	// ContextTasks is how many of the user's tasks the model sees.
	ContextTasks int
	Thresholds   ai.Thresholds
}

// Response is the outcome of one chat turn.
type Response struct {
	ConversationID    string        `json:"conversation_id"`
	MessageID         string        `json:"message_id,omitempty"`
	Message           string        `json:"message"`
	Action            ai.Action     `json:"action,omitempty"`
	Confidence        float64       `json:"confidence"`
	SuggestedCLI      string        `json:"suggested_cli,omitempty"`
	Executed          bool          `json:"executed"`
	NeedsConfirmation bool          `json:"needs_confirmation"`
	IsFallback        bool          `json:"is_fallback"`
	Task              *tasks.Task   `json:"task,omitempty"`
	Tasks             []*tasks.Task `json:"tasks,omitempty"`
}

// Service wires the interpreter, executor, and fallback handler to the
// conversation log and event bus.
type Service struct {
	interpreter   Interpreter
	executor      *ai.Executor
	fallback      *ai.FallbackHandler
	tasks         *tasks.Service
	conversations *conversations.Service
	pending       PendingStore
	bus           *events.Bus
	opts          Options
}

func NewService(
	interpreter Interpreter,
	executor *ai.Executor,
	fallback *ai.FallbackHandler,
	taskService *tasks.Service,
	conversationService *conversations.Service,
	pending PendingStore,
	bus *events.Bus,
	opts Options,
) *Service {
	if opts.MaxContextMessages <= 0 {
		opts.MaxContextMessages = 10
	}
	if opts.ContextTasks <= 0 {
		opts.ContextTasks = 20
	}
	if opts.Thresholds.High == 0 && opts.Thresholds.Low == 0 {
		opts.Thresholds = ai.DefaultThresholds
	}
	return &Service{
		interpreter:   interpreter,
		executor:      executor,
		fallback:      fallback,
		tasks:         taskService,
		conversations: conversationService,
		pending:       pending,
		bus:           bus,
		opts:          opts,
	}
}

// ProcessMessage runs one chat turn for the user. The user turn is recorded
// before interpretation and the assistant turn exactly once, whichever branch
// the pipeline takes.
func (s *Service) ProcessMessage(ctx context.Context, userID, conversationID, text string) (*Response, error) {
	conv, err := s.conversations.GetOrCreate(userID, conversationID)
	if err != nil {
		return nil, err
	}

	// History is gathered before the new turn is recorded so the model sees
	// the message once, as the current prompt.
	history, err := s.conversations.HistoryForModel(conv.ID, s.opts.MaxContextMessages)
	if err != nil {
		slog.Warn("failed to load conversation history", "conversation_id", conv.ID, "error", err)
		history = nil
	}

	if _, err := s.conversations.AppendUser(conv.ID, text); err != nil {
		return nil, err
	}
	s.publish(events.EventChatMessage, userID, map[string]any{
		"conversation_id": conv.ID,
		"role":            "user",
	})

	resp := s.respond(ctx, userID, conv.ID, text, history)
	resp.ConversationID = conv.ID

	cli := resp.SuggestedCLI
	msg, err := s.conversations.AppendAssistant(conv.ID, resp.Message, cli, resp.Confidence)
	if err != nil {
		return nil, err
	}
	resp.MessageID = msg.ID

	if err := s.conversations.AutoTitle(userID, conv.ID); err != nil {
		slog.Warn("auto-title failed", "conversation_id", conv.ID, "error", err)
	}
	return resp, nil
}

// respond picks the pipeline branch and produces the assistant's reply.
func (s *Service) respond(ctx context.Context, userID, conversationID, text string, history []*schema.Message) *Response {
	if cli, ok := cliBypass(text); ok {
		return &Response{
			Message:      "That looks like a CLI command. You can run it directly in your terminal:\n\n  " + cli,
			SuggestedCLI: cli,
		}
	}

	if s.interpreter == nil {
		s.publish(events.EventChatFallback, userID, map[string]any{
			"conversation_id": conversationID,
			"reason":          "unavailable",
		})
		return &Response{Message: s.fallback.Unavailable(), IsFallback: true}
	}

	userTasks := s.taskContext(userID)
	cmd := s.interpreter.Interpret(ctx, text, history, userTasks)

	s.publish(events.EventChatInterpreted, userID, map[string]any{
		"conversation_id": conversationID,
		"action":          string(cmd.Action),
		"confidence":      cmd.Confidence,
	})

	switch {
	case s.fallback.ShouldFallback(cmd):
		s.publish(events.EventChatFallback, userID, map[string]any{
			"conversation_id": conversationID,
			"action":          string(cmd.Action),
			"confidence":      cmd.Confidence,
		})
		return &Response{
			Message:      s.fallback.Fallback(cmd),
			Action:       cmd.Action,
			Confidence:   cmd.Confidence,
			SuggestedCLI: cmd.SuggestedCLI,
			IsFallback:   true,
		}

	case s.fallback.ShouldConfirm(cmd):
		if err := s.pending.PutPending(&PendingCommand{
			ConversationID: conversationID,
			UserID:         userID,
			Command:        *cmd,
			CreatedAt:      time.Now().UTC(),
		}); err != nil {
			slog.Error("failed to park pending command", "error", err)
			return &Response{
				Message:      s.fallback.Fallback(cmd),
				Action:       cmd.Action,
				Confidence:   cmd.Confidence,
				SuggestedCLI: cmd.SuggestedCLI,
				IsFallback:   true,
			}
		}
		s.publish(events.EventChatConfirmation, userID, map[string]any{
			"conversation_id": conversationID,
			"action":          string(cmd.Action),
		})
		return &Response{
			Message:           s.fallback.Confirmation(cmd),
			Action:            cmd.Action,
			Confidence:        cmd.Confidence,
			SuggestedCLI:      cmd.SuggestedCLI,
			NeedsConfirmation: true,
		}

	default:
		return s.execute(userID, conversationID, cmd)
	}
}

// Confirm resolves the conversation's pending command. The record is consumed
// whether the user approved or not.
func (s *Service) Confirm(ctx context.Context, userID, conversationID string, confirmed bool) (*Response, error) {
	if _, err := s.conversations.Get(userID, conversationID); err != nil {
		return nil, err
	}

	p, err := s.pending.GetPending(conversationID)
	if err != nil || p == nil || p.UserID != userID || p.Expired(time.Now().UTC()) {
		resp := &Response{
			ConversationID: conversationID,
			Message:        "There's nothing waiting for confirmation.",
		}
		return s.record(resp, conversationID)
	}

	if err := s.pending.DeletePending(conversationID); err != nil {
		slog.Warn("failed to clear pending command", "conversation_id", conversationID, "error", err)
	}

	if !confirmed {
		resp := &Response{
			ConversationID: conversationID,
			Message:        "Okay, I won't do that.",
			Action:         p.Command.Action,
		}
		return s.record(resp, conversationID)
	}

	resp := s.execute(userID, conversationID, &p.Command)
	resp.ConversationID = conversationID
	return s.record(resp, conversationID)
}

func (s *Service) record(resp *Response, conversationID string) (*Response, error) {
	msg, err := s.conversations.AppendAssistant(conversationID, resp.Message, resp.SuggestedCLI, resp.Confidence)
	if err != nil {
		return nil, err
	}
	resp.MessageID = msg.ID
	return resp, nil
}

func (s *Service) execute(userID, conversationID string, cmd *ai.Command) *Response {
	res := s.executor.Execute(userID, cmd)
	s.publish(events.EventChatExecuted, userID, map[string]any{
		"conversation_id": conversationID,
		"action":          string(res.Action),
		"success":         res.Success,
	})
	return &Response{
		Message:      res.Message,
		Action:       cmd.Action,
		Confidence:   cmd.Confidence,
		SuggestedCLI: cmd.SuggestedCLI,
		Executed:     res.Success,
		Task:         res.Task,
		Tasks:        res.Tasks,
	}
}

// taskContext loads the user's tasks for the model prompt. A load failure
// degrades to interpretation without task context.
func (s *Service) taskContext(userID string) []ai.TaskContext {
	list, err := s.tasks.List(userID, tasks.ListFilter{Status: tasks.StatusAll, Limit: s.opts.ContextTasks})
	if err != nil {
		slog.Warn("failed to load task context", "user_id", userID, "error", err)
		return nil
	}
	out := make([]ai.TaskContext, 0, len(list))
	for _, t := range list {
		out = append(out, ai.TaskContext{ID: t.ID, Title: t.Title, Done: t.Done})
	}
	return out
}

// cliBypass detects messages that are already CLI invocations. Those skip
// interpretation entirely.
func cliBypass(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "bonsai ") {
		return trimmed, true
	}
	if rest, ok := strings.CutPrefix(trimmed, "/cli "); ok {
		return "bonsai " + strings.TrimSpace(rest), true
	}
	return "", false
}

func (s *Service) publish(eventType events.EventType, userID string, payload map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.NewUserEvent(eventType, events.SourceChat, userID, payload))
}
