package ai

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bonsai-todo/bonsai/internal/tasks"
)

// ExecutionResult is the outcome of running a command against the task
// service. Message is always user-presentable.
type ExecutionResult struct {
	Success bool           `json:"success"`
	Action  Action         `json:"action"`
	Task    *tasks.Task    `json:"task,omitempty"`
	Tasks   []*tasks.Task  `json:"tasks,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Message string         `json:"message"`
}

// Executor applies interpreted commands to the task service. Every operation
// is scoped to the calling user; a command can never touch another user's
// tasks.
type Executor struct {
	tasks *tasks.Service
}

func NewExecutor(taskService *tasks.Service) *Executor {
	return &Executor{tasks: taskService}
}

// Execute dispatches cmd for userID. Commands that still need clarification
// are refused rather than guessed at.
func (e *Executor) Execute(userID string, cmd *Command) *ExecutionResult {
	if cmd.NeedsClarification {
		return &ExecutionResult{
			Action:  cmd.Action,
			Message: cmd.ClarificationQuestion,
		}
	}

	slog.Info("executing command", "user_id", userID, "action", cmd.Action)

	switch cmd.Action {
	case ActionAdd:
		return e.add(userID, cmd)
	case ActionList:
		return e.list(userID, cmd)
	case ActionComplete:
		return e.complete(userID, cmd)
	case ActionUpdate:
		return e.update(userID, cmd)
	case ActionDelete:
		return e.delete(userID, cmd)
	default:
		return &ExecutionResult{
			Action:  ActionUnknown,
			Message: "I couldn't understand what you want to do. Try a CLI command like: " + cmd.SuggestedCLI,
		}
	}
}

func (e *Executor) add(userID string, cmd *Command) *ExecutionResult {
	if cmd.Title == "" {
		return &ExecutionResult{
			Action:  ActionAdd,
			Message: "I need a title for the task. What should it be called?",
		}
	}

	task, err := e.tasks.Create(userID, tasks.CreateParams{
		Title:    cmd.Title,
		Priority: cmd.Priority,
		Due:      cmd.DueDate,
	})
	if err != nil {
		return failed(ActionAdd, "create task", err)
	}

	msg := fmt.Sprintf("Added task: %s", task.Title)
	if task.Due != nil {
		msg += " (due " + task.Due.Format("2006-01-02") + ")"
	}
	return &ExecutionResult{Success: true, Action: ActionAdd, Task: task, Message: msg}
}

func (e *Executor) list(userID string, cmd *Command) *ExecutionResult {
	filter := tasks.ListFilter{Status: tasks.StatusAll}
	switch cmd.StatusFilter {
	case FilterPending:
		filter.Status = tasks.StatusPending
	case FilterCompleted:
		filter.Status = tasks.StatusCompleted
	}

	list, err := e.tasks.List(userID, filter)
	if err != nil {
		return failed(ActionList, "list tasks", err)
	}

	msg := fmt.Sprintf("You have %d task(s).", len(list))
	if len(list) == 0 {
		msg = "You have no tasks."
		if filter.Status != tasks.StatusAll {
			msg = fmt.Sprintf("You have no %s tasks.", filter.Status)
		}
	}
	return &ExecutionResult{
		Success: true,
		Action:  ActionList,
		Tasks:   list,
		Data:    map[string]any{"count": len(list), "filter": string(filter.Status)},
		Message: msg,
	}
}

func (e *Executor) complete(userID string, cmd *Command) *ExecutionResult {
	if cmd.TaskID == "" {
		return missingTaskID(ActionComplete)
	}

	task, alreadyDone, err := e.tasks.Complete(userID, cmd.TaskID)
	if err != nil {
		return notFoundOr(ActionComplete, "complete task", err)
	}

	msg := fmt.Sprintf("Completed: %s", task.Title)
	if alreadyDone {
		msg = fmt.Sprintf("'%s' was already completed.", task.Title)
	}
	return &ExecutionResult{
		Success: true,
		Action:  ActionComplete,
		Task:    task,
		Data:    map[string]any{"already_completed": alreadyDone},
		Message: msg,
	}
}

func (e *Executor) update(userID string, cmd *Command) *ExecutionResult {
	if cmd.TaskID == "" {
		return missingTaskID(ActionUpdate)
	}

	params := tasks.UpdateParams{Due: cmd.DueDate}
	if cmd.Title != "" {
		params.Title = &cmd.Title
	}
	if cmd.Priority != 0 {
		params.Priority = &cmd.Priority
	}
	if params.IsEmpty() {
		return &ExecutionResult{
			Action:  ActionUpdate,
			Message: "What would you like to change about this task?",
		}
	}

	before, err := e.tasks.Get(userID, cmd.TaskID)
	if err != nil {
		return notFoundOr(ActionUpdate, "update task", err)
	}
	oldTitle := before.Title

	task, err := e.tasks.Update(userID, cmd.TaskID, params)
	if err != nil {
		return notFoundOr(ActionUpdate, "update task", err)
	}

	return &ExecutionResult{
		Success: true,
		Action:  ActionUpdate,
		Task:    task,
		Data:    map[string]any{"old_title": oldTitle},
		Message: fmt.Sprintf("Updated task: %s", task.Title),
	}
}

func (e *Executor) delete(userID string, cmd *Command) *ExecutionResult {
	if cmd.TaskID == "" {
		return missingTaskID(ActionDelete)
	}

	task, err := e.tasks.Delete(userID, cmd.TaskID)
	if err != nil {
		return notFoundOr(ActionDelete, "delete task", err)
	}

	return &ExecutionResult{
		Success: true,
		Action:  ActionDelete,
		Task:    task,
		Message: fmt.Sprintf("Deleted task: %s", task.Title),
	}
}

func missingTaskID(action Action) *ExecutionResult {
	return &ExecutionResult{
		Action:  action,
		Message: "Which task do you mean? Please specify a task number or ID.",
	}
}

func notFoundOr(action Action, op string, err error) *ExecutionResult {
	if errors.Is(err, tasks.ErrNotFound) {
		return &ExecutionResult{Action: action, Message: "Task not found. Use 'bonsai list' to see your tasks."}
	}
	return failed(action, op, err)
}

func failed(action Action, op string, err error) *ExecutionResult {
	slog.Error("command execution failed", "action", action, "error", err)
	return &ExecutionResult{Action: action, Message: "Could not " + op + ". Please try again."}
}
