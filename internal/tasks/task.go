// Package tasks provides user-scoped task management.
package tasks

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority levels. Lower is more urgent.
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityMedium   = 3
	PriorityLow      = 4
	PriorityNone     = 5
)

const (
	maxTitleLen       = 255
	maxDescriptionLen = 4000
)

// ErrNotFound is returned when a task does not exist or belongs to another user.
var ErrNotFound = errors.New("task not found")

// StatusFilter selects tasks by completion state.
type StatusFilter string

const (
	StatusPending   StatusFilter = "pending"
	StatusCompleted StatusFilter = "completed"
	StatusAll       StatusFilter = "all"
)

// Task represents a single todo item owned by a user.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Done        bool       `json:"done"`
	Priority    int         `json:"priority"`
	Due         *time.Time  `json:"due,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Recurrence  *Recurrence `json:"recurrence,omitempty"`
	ParentID    string      `json:"parent_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// CreateParams holds the fields for creating a task.
type CreateParams struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Priority    int         `json:"priority,omitempty"`
	Due         *time.Time  `json:"due,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Recurrence  *Recurrence `json:"recurrence,omitempty"`
}

// UpdateParams holds the fields for a partial task update. Nil fields are left
// unchanged.
type UpdateParams struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
}

// IsEmpty returns true when the update changes nothing.
func (p UpdateParams) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.Due == nil && p.Tags == nil
}

// ListFilter defines criteria for filtering task lists. Tag narrows the list
// to tasks carrying the named tag (case-insensitive).
type ListFilter struct {
	Status StatusFilter `json:"status,omitempty"`
	Tag    string       `json:"tag,omitempty"`
	Limit  int          `json:"limit,omitempty"`
}

// Store defines the persistence interface for tasks. Implementations scope
// every lookup and mutation by owning user and populate Task.Tags on
// user-scoped reads.
type Store interface {
	CreateTask(t *Task) error
	GetTask(userID, id string) (*Task, error)
	ListTasks(userID string, filter ListFilter) ([]*Task, error)
	UpdateTask(t *Task) error
	DeleteTask(userID, id string) error
	ListDueTasks(before time.Time) ([]*Task, error)

	TagStore
}

// ValidateTitle checks the title length constraint.
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("title is required")
	}
	if len(title) > maxTitleLen {
		return fmt.Errorf("title exceeds %d characters", maxTitleLen)
	}
	return nil
}

// ValidateDescription checks the description length constraint.
func ValidateDescription(desc string) error {
	if len(desc) > maxDescriptionLen {
		return fmt.Errorf("description exceeds %d characters", maxDescriptionLen)
	}
	return nil
}

// ValidatePriority checks the priority range.
func ValidatePriority(p int) error {
	if p < PriorityCritical || p > PriorityNone {
		return fmt.Errorf("priority must be between %d and %d", PriorityCritical, PriorityNone)
	}
	return nil
}

// GenerateTaskID creates a unique task identifier.
func GenerateTaskID() string {
	u := uuid.New().String()
	return "task_" + strings.ReplaceAll(u[:8], "-", "")
}
