package ai

import "fmt"

const helpText = `Here's what I can do:
  bonsai add "title" [--due YYYY-MM-DD]   add a task
  bonsai list [--pending|--completed]     list tasks
  bonsai complete <id>                    mark a task done
  bonsai update <id> [--title "..."]      change a task
  bonsai delete <id>                      remove a task`

// FallbackHandler decides when an interpreted command is too uncertain to
// execute and renders the CLI suggestion or confirmation prompt for it.
type FallbackHandler struct {
	thresholds Thresholds
}

func NewFallbackHandler(t Thresholds) *FallbackHandler {
	if t.High == 0 && t.Low == 0 {
		t = DefaultThresholds
	}
	return &FallbackHandler{thresholds: t}
}

// ShouldFallback reports whether cmd must not be executed at all.
func (h *FallbackHandler) ShouldFallback(cmd *Command) bool {
	return cmd.Action == ActionUnknown ||
		cmd.Confidence < h.thresholds.Low ||
		cmd.NeedsClarification
}

// ShouldConfirm reports whether cmd needs an explicit yes from the user
// before running. Deletes always confirm regardless of confidence.
func (h *FallbackHandler) ShouldConfirm(cmd *Command) bool {
	if h.ShouldFallback(cmd) {
		return false
	}
	if cmd.Action == ActionDelete {
		return true
	}
	return h.thresholds.Level(cmd.Confidence) == ConfidenceMedium
}

// Fallback renders the message for a command that will not be executed.
func (h *FallbackHandler) Fallback(cmd *Command) string {
	if cmd.NeedsClarification && cmd.ClarificationQuestion != "" {
		return cmd.ClarificationQuestion
	}
	if cmd.Action == ActionUnknown {
		return "I'm not sure what you'd like to do.\n\n" + helpText
	}
	return fmt.Sprintf(
		"I think you want to %s, but I'm not confident enough to do it automatically.\nYou can run it yourself:\n\n  %s",
		describeAction(cmd), cmd.SuggestedCLI,
	)
}

// Confirmation renders the yes/no prompt for a command awaiting approval.
func (h *FallbackHandler) Confirmation(cmd *Command) string {
	msg := fmt.Sprintf("Just to confirm: you want to %s?", describeAction(cmd))
	if cmd.Action == ActionDelete {
		msg += " This cannot be undone."
	}
	return msg + fmt.Sprintf("\n\nReply yes to proceed, or run it directly:\n\n  %s", cmd.SuggestedCLI)
}

// Unavailable is shown when no AI provider is configured or reachable.
func (h *FallbackHandler) Unavailable() string {
	return "The assistant is currently unavailable, but the CLI works without it.\n\n" + helpText
}

// Timeout is shown when interpretation exceeded its deadline.
func (h *FallbackHandler) Timeout() string {
	return "That took too long to process. Please try again, or use the CLI:\n\n" + helpText
}

func describeAction(cmd *Command) string {
	switch cmd.Action {
	case ActionAdd:
		if cmd.Title != "" {
			return fmt.Sprintf("add a task called %q", cmd.Title)
		}
		return "add a task"
	case ActionList:
		switch cmd.StatusFilter {
		case FilterPending:
			return "list your pending tasks"
		case FilterCompleted:
			return "list your completed tasks"
		}
		return "list your tasks"
	case ActionComplete:
		return "mark task " + taskRef(cmd) + " as done"
	case ActionUpdate:
		return "update task " + taskRef(cmd)
	case ActionDelete:
		return "delete task " + taskRef(cmd)
	default:
		return "do something I couldn't identify"
	}
}

func taskRef(cmd *Command) string {
	if cmd.TaskID != "" {
		return cmd.TaskID
	}
	if cmd.TaskReference != "" {
		return fmt.Sprintf("%q", cmd.TaskReference)
	}
	return "<id>"
}
