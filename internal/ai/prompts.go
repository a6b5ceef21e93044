package ai

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

const intentToolName = "extract_task_intent"

const intentSystemPrompt = `You are a task management assistant that interprets natural language commands and converts them to structured task operations.

Your job is to understand what the user wants to do with their tasks and extract the relevant information.

Available operations:
1. ADD - Create a new task (requires: title, optional: due_date, priority)
2. LIST - View tasks (optional: status filter - pending, completed, or all)
3. UPDATE - Modify an existing task (requires: task_id or task reference, optional: new title, new due_date)
4. DELETE - Remove a task (requires: task_id or task reference)
5. COMPLETE - Mark a task as done (requires: task_id or task reference)

Rules:
- ONLY extract information that is explicitly stated by the user
- Do NOT add, assume, or infer details not mentioned
- If the user's intent is unclear, set needs_clarification to true
- If multiple tasks might match a description (e.g. "the grocery task"), note this
- Be conservative - if unsure, ask for clarification rather than guessing
- Report a confidence score in [0.0, 1.0] for your interpretation

Examples:
- "Add a task to buy groceries tomorrow" -> ADD, title="buy groceries", due_date=tomorrow
- "Show my pending tasks" -> LIST, status_filter=pending
- "Mark task 3 as done" -> COMPLETE, task_id=3`

// intentToolInfo returns the function-calling schema the model is bound to.
// The interpreter consumes only the first call to this tool.
func intentToolInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: intentToolName,
		Desc: "Extract the user's intent from a natural language task management command",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"action": {
				Type:     schema.String,
				Desc:     "The task operation the user wants to perform",
				Enum:     []string{"add", "list", "update", "delete", "complete", "unknown"},
				Required: true,
			},
			"confidence": {
				Type:     schema.Number,
				Desc:     "Confidence score for the interpretation (0.0-1.0)",
				Required: true,
			},
			"detected_language": {
				Type: schema.String,
				Desc: "BCP 47 code of the detected input language (e.g. 'en')",
			},
			"title": {
				Type: schema.String,
				Desc: "Task title for add/update operations (only if explicitly stated)",
			},
			"task_id": {
				Type: schema.String,
				Desc: "Task identifier if the user specified one: either a list position (e.g. 'task 3') or a full ID",
			},
			"task_reference": {
				Type: schema.String,
				Desc: "Text reference to a task if not by ID (e.g. 'the grocery task')",
			},
			"due_date": {
				Type: schema.String,
				Desc: "Due date in natural language (e.g. 'tomorrow', 'in 3 days') or ISO format",
			},
			"priority": {
				Type: schema.Integer,
				Desc: "Priority level if specified: 1=Critical, 2=High, 3=Medium, 4=Low, 5=None",
			},
			"status_filter": {
				Type: schema.String,
				Desc: "Status filter for list operations",
				Enum: []string{"pending", "completed", "all"},
			},
			"needs_clarification": {
				Type: schema.Boolean,
				Desc: "True if the user's intent is ambiguous and needs clarification",
			},
			"clarification_question": {
				Type: schema.String,
				Desc: "Question to ask the user if clarification is needed",
			},
		}),
	}
}

// TaskContext is the slice of a user's task list shown to the model so it can
// resolve references like "the grocery task" or "task 2".
type TaskContext struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// buildIntentMessages assembles the prompt: system instructions, current task
// context, prior turns, and the new user message.
func buildIntentMessages(userMessage string, history []*schema.Message, userTasks []TaskContext) []*schema.Message {
	system := intentSystemPrompt

	if len(userTasks) > 0 {
		var sb strings.Builder
		sb.WriteString("\n\nThe user's current tasks (position. [ID] title):\n")
		for i, t := range userTasks {
			status := "pending"
			if t.Done {
				status = "done"
			}
			fmt.Fprintf(&sb, "%d. [%s] %s (%s)\n", i+1, t.ID, t.Title, status)
		}
		system += sb.String()
	}

	msgs := make([]*schema.Message, 0, len(history)+2)
	msgs = append(msgs, &schema.Message{Role: schema.System, Content: system})
	msgs = append(msgs, history...)
	msgs = append(msgs, &schema.Message{Role: schema.User, Content: userMessage})
	return msgs
}
