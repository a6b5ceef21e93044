package tasks

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxTagNameLen   = 50
	defaultTagColor = "#808080"
)

// ErrTagNotFound is returned when a tag does not exist or belongs to another
// user.
var ErrTagNotFound = errors.New("tag not found")

// Tag is a user-scoped label attachable to any number of tasks. Names are
// unique per user, case-insensitively.
type Tag struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	TaskCount int       `json:"task_count"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateTagParams holds the fields for creating a tag. Color defaults to a
// neutral grey when empty.
type CreateTagParams struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// UpdateTagParams holds the fields for a partial tag update.
type UpdateTagParams struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// TagStore persists tags and their task associations.
type TagStore interface {
	CreateTag(t *Tag) error
	GetTag(userID, id string) (*Tag, error)
	GetTagByName(userID, name string) (*Tag, error)
	ListTags(userID string) ([]*Tag, error)
	UpdateTag(t *Tag) error
	DeleteTag(userID, id string) error
	SetTaskTags(userID, taskID string, tagIDs []string) error
}

var validTagColor = regexp.MustCompile(`^#[0-9A-Fa-f]{3}(?:[0-9A-Fa-f]{3})?$`)

// ValidateTagName checks the tag name constraints.
func ValidateTagName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("tag name is required")
	}
	if len(name) > maxTagNameLen {
		return fmt.Errorf("tag name exceeds %d characters", maxTagNameLen)
	}
	return nil
}

// ValidateTagColor checks that the color is a hex value like #FF5733.
func ValidateTagColor(color string) error {
	if !validTagColor.MatchString(color) {
		return fmt.Errorf("color must be a hex value like #FF5733, got %q", color)
	}
	return nil
}

// GenerateTagID creates a unique tag identifier.
func GenerateTagID() string {
	u := uuid.New().String()
	return "tag_" + strings.ReplaceAll(u[:8], "-", "")
}
