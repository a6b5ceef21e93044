package ai

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tidwall/gjson"
)

// DefaultTimeout bounds a single interpretation call.
const DefaultTimeout = 5 * time.Second

// Interpreter converts natural language messages into structured Commands
// using a tool-calling chat model. It never returns an error across its
// boundary: any failure degrades to an unknown command with zero confidence.
type Interpreter struct {
	model   model.ToolCallingChatModel
	timeout time.Duration
}

// NewInterpreter binds the chat model to the intent extraction tool.
func NewInterpreter(chatModel model.ToolCallingChatModel, timeout time.Duration) (*Interpreter, error) {
	bound, err := chatModel.WithTools([]*schema.ToolInfo{intentToolInfo()})
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Interpreter{model: bound, timeout: timeout}, nil
}

// Interpret runs one interpretation attempt. No retry: on timeout, transport
// failure, or an unparsable response the returned command has action=unknown
// and confidence 0.
func (i *Interpreter) Interpret(ctx context.Context, message string, history []*schema.Message, userTasks []TaskContext) *Command {
	msgs := buildIntentMessages(message, history, userTasks)

	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	out, err := i.model.Generate(callCtx, msgs)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("interpretation timed out", "timeout", i.timeout)
			return timeoutCommand(message)
		}
		slog.Error("interpretation failed", "error", err)
		return errorCommand(message)
	}

	if len(out.ToolCalls) == 0 {
		// The model answered in prose instead of calling the tool.
		return errorCommand(message)
	}

	// Only the first tool call of the first candidate counts.
	return i.parseArguments(message, out.ToolCalls[0].Function.Arguments, userTasks)
}

// parseArguments builds a Command from the tool call's JSON arguments.
// gjson tolerates the model's loose typing (e.g. numeric task IDs).
func (i *Interpreter) parseArguments(original, args string, userTasks []TaskContext) *Command {
	if !gjson.Valid(args) {
		slog.Error("malformed tool arguments", "args", args)
		return errorCommand(original)
	}

	cmd := &Command{
		OriginalText:     original,
		Action:           ParseAction(gjson.Get(args, "action").String()),
		Confidence:       clampConfidence(gjson.Get(args, "confidence").Float()),
		Title:            gjson.Get(args, "title").String(),
		TaskReference:    gjson.Get(args, "task_reference").String(),
		DetectedLanguage: gjson.Get(args, "detected_language").String(),
		DueDate:          parseDueDate(gjson.Get(args, "due_date").String(), time.Now()),
	}

	if p := gjson.Get(args, "priority"); p.Exists() {
		if v := int(p.Int()); v >= 1 && v <= 5 {
			cmd.Priority = v
		}
	}

	switch StatusFilter(gjson.Get(args, "status_filter").String()) {
	case FilterPending, FilterCompleted, FilterAll:
		cmd.StatusFilter = StatusFilter(gjson.Get(args, "status_filter").String())
	}

	if gjson.Get(args, "needs_clarification").Bool() {
		cmd.NeedsClarification = true
		cmd.ClarificationQuestion = gjson.Get(args, "clarification_question").String()
		if cmd.ClarificationQuestion == "" {
			cmd.ClarificationQuestion = "Could you please provide more details?"
		}
	}

	cmd.TaskID = resolveTaskID(gjson.Get(args, "task_id"), userTasks)

	// Resolve a free-text reference when no ID was given. A unique match is
	// used directly; several matches force a clarification turn.
	if cmd.TaskID == "" && cmd.TaskReference != "" && len(userTasks) > 0 {
		matches := matchTasksByTitle(cmd.TaskReference, userTasks)
		switch len(matches) {
		case 0:
		case 1:
			cmd.TaskID = matches[0]
		default:
			cmd.MultipleMatches = matches
			cmd.NeedsClarification = true
			cmd.ClarificationQuestion = "Multiple tasks match '" + cmd.TaskReference + "'. Please specify which one by ID."
		}
	}

	if cmd.Action == ActionUnknown {
		cmd.Confidence = 0
	}
	cmd.SuggestedCLI = BuildCLI(cmd)
	return cmd
}

// resolveTaskID accepts either a full task ID or a 1-based position into the
// user's task context.
func resolveTaskID(raw gjson.Result, userTasks []TaskContext) string {
	if !raw.Exists() {
		return ""
	}

	s := strings.TrimSpace(raw.String())
	if s == "" {
		return ""
	}

	// Numeric: treat as a 1-based list position.
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= len(userTasks) {
			return userTasks[n-1].ID
		}
		return ""
	}

	// Otherwise it must name a task the user actually has.
	for _, t := range userTasks {
		if t.ID == s {
			return s
		}
	}
	return ""
}

// matchTasksByTitle finds task IDs whose titles overlap the reference text.
func matchTasksByTitle(reference string, userTasks []TaskContext) []string {
	ref := strings.ToLower(reference)
	var matches []string
	for _, t := range userTasks {
		title := strings.ToLower(t.Title)
		if strings.Contains(title, ref) || strings.Contains(ref, title) {
			matches = append(matches, t.ID)
		}
	}
	return matches
}

// parseDueDate understands a handful of natural language due dates plus ISO
// dates. Unrecognized input yields nil rather than an error.
func parseDueDate(s string, now time.Time) *time.Time {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}

	day := func(t time.Time) *time.Time {
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d
	}

	switch s {
	case "today", "now":
		return day(now)
	case "tomorrow":
		return day(now.AddDate(0, 0, 1))
	case "next week":
		return day(now.AddDate(0, 0, 7))
	}

	if strings.Contains(s, "day") {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, s)
		if n, err := strconv.Atoi(digits); err == nil {
			return day(now.AddDate(0, 0, n))
		}
	}

	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t
	}
	return nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func timeoutCommand(original string) *Command {
	return &Command{
		OriginalText:          original,
		Action:                ActionUnknown,
		Confidence:            0,
		SuggestedCLI:          "bonsai help",
		NeedsClarification:    true,
		ClarificationQuestion: "I'm taking too long to process. Please try using a CLI command directly.",
	}
}

func errorCommand(original string) *Command {
	return &Command{
		OriginalText:          original,
		Action:                ActionUnknown,
		Confidence:            0,
		SuggestedCLI:          "bonsai help",
		NeedsClarification:    true,
		ClarificationQuestion: "I encountered an error. Please try using a CLI command directly.",
	}
}
