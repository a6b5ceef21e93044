// Package ai implements the natural-language interpretation pipeline:
// a user message is interpreted into a structured command, gated on the
// model's confidence, and either executed against the task service or turned
// into a CLI suggestion.
package ai

import (
	"fmt"
	"strings"
	"time"
)

// Action is the task operation an interpreted command maps to.
type Action string

const (
	ActionAdd      Action = "add"
	ActionList     Action = "list"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionComplete Action = "complete"
	ActionUnknown  Action = "unknown"
)

// ParseAction maps a string to an Action, defaulting to unknown.
func ParseAction(s string) Action {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionAdd, ActionList, ActionUpdate, ActionDelete, ActionComplete:
		return Action(strings.ToLower(strings.TrimSpace(s)))
	default:
		return ActionUnknown
	}
}

// ConfidenceLevel buckets a confidence score into the orchestrator's tiers.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Thresholds gate the confidence branching. High executes immediately,
// [Low, High) requests confirmation, below Low falls back.
type Thresholds struct {
	High float64
	Low  float64
}

// DefaultThresholds are used when the config does not override them.
var DefaultThresholds = Thresholds{High: 0.8, Low: 0.5}

// Level buckets a confidence score using the given thresholds.
func (t Thresholds) Level(confidence float64) ConfidenceLevel {
	switch {
	case confidence >= t.High:
		return ConfidenceHigh
	case confidence >= t.Low:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Command is the structured interpretation of one user message.
// Commands are ephemeral: built per request, discarded after the response.
type Command struct {
	OriginalText string `json:"original_text"`
	Action       Action `json:"action"`
	// Confidence is the model-reported certainty in [0, 1]. Always populated;
	// unknown actions carry 0.
	Confidence float64 `json:"confidence"`

	TaskID        string       `json:"task_id,omitempty"`
	TaskReference string       `json:"task_reference,omitempty"`
	Title         string       `json:"title,omitempty"`
	DueDate       *time.Time   `json:"due_date,omitempty"`
	Priority      int          `json:"priority,omitempty"`
	StatusFilter  StatusFilter `json:"status_filter,omitempty"`

	NeedsClarification    bool     `json:"needs_clarification,omitempty"`
	ClarificationQuestion string   `json:"clarification_question,omitempty"`
	MultipleMatches       []string `json:"multiple_matches,omitempty"`

	DetectedLanguage string `json:"detected_language,omitempty"`

	// SuggestedCLI is the literal bonsai invocation equivalent to this
	// command, shown in confirmation and fallback responses.
	SuggestedCLI string `json:"suggested_cli,omitempty"`
}

// StatusFilter narrows list operations by completion state.
type StatusFilter string

const (
	FilterPending   StatusFilter = "pending"
	FilterCompleted StatusFilter = "completed"
	FilterAll       StatusFilter = "all"
)

// BuildCLI renders the literal CLI command equivalent to c. The result is
// always a runnable bonsai invocation; missing identifiers are rendered as
// placeholders.
func BuildCLI(c *Command) string {
	switch c.Action {
	case ActionAdd:
		title := c.Title
		if title == "" {
			title = "task"
		}
		cmd := fmt.Sprintf("bonsai add %q", title)
		if c.DueDate != nil {
			cmd += " --due " + c.DueDate.Format("2006-01-02")
		}
		return cmd

	case ActionList:
		cmd := "bonsai list"
		switch c.StatusFilter {
		case FilterPending:
			cmd += " --pending"
		case FilterCompleted:
			cmd += " --completed"
		}
		return cmd

	case ActionComplete:
		if c.TaskID != "" {
			return "bonsai complete " + c.TaskID
		}
		return "bonsai complete <task_id>"

	case ActionUpdate:
		if c.TaskID == "" {
			return "bonsai update <task_id> --title <new_title>"
		}
		cmd := "bonsai update " + c.TaskID
		if c.Title != "" {
			cmd += fmt.Sprintf(" --title %q", c.Title)
		}
		if c.DueDate != nil {
			cmd += " --due " + c.DueDate.Format("2006-01-02")
		}
		return cmd

	case ActionDelete:
		if c.TaskID != "" {
			return "bonsai delete " + c.TaskID
		}
		return "bonsai delete <task_id>"
	}

	return "bonsai help"
}
