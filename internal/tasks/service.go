package tasks

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bonsai-todo/bonsai/internal/events"
)

// Service wraps a Store with validation, user isolation, and event publishing.
// All task mutations in the system go through this service; the AI layer never
// touches the store directly.
type Service struct {
	store Store
	bus   *events.Bus
}

// NewService creates a task service. The bus may be nil, in which case no
// events are published.
func NewService(store Store, bus *events.Bus) *Service {
	return &Service{store: store, bus: bus}
}

// Create validates and persists a new task for the user.
func (s *Service) Create(userID string, params CreateParams) (*Task, error) {
	if err := ValidateTitle(params.Title); err != nil {
		return nil, err
	}
	if err := ValidateDescription(params.Description); err != nil {
		return nil, err
	}
	priority := params.Priority
	if priority == 0 {
		priority = PriorityMedium
	}
	if err := ValidatePriority(priority); err != nil {
		return nil, err
	}
	if params.Recurrence != nil {
		if err := params.Recurrence.Validate(); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	t := &Task{
		ID:          GenerateTaskID(),
		UserID:      userID,
		Title:       strings.TrimSpace(params.Title),
		Description: params.Description,
		Priority:    priority,
		Due:         params.Due,
		Recurrence:  params.Recurrence,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateTask(t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if len(params.Tags) > 0 {
		if err := s.assignTags(t, params.Tags); err != nil {
			return nil, err
		}
	}

	s.publish(events.EventTaskCreated, t)
	return t, nil
}

// Get returns the user's task by ID.
func (s *Service) Get(userID, id string) (*Task, error) {
	return s.store.GetTask(userID, id)
}

// List returns the user's tasks, newest first.
func (s *Service) List(userID string, filter ListFilter) ([]*Task, error) {
	return s.store.ListTasks(userID, filter)
}

// Update applies a partial update to the user's task.
func (s *Service) Update(userID, id string, params UpdateParams) (*Task, error) {
	if params.IsEmpty() {
		return nil, fmt.Errorf("nothing to update")
	}

	t, err := s.store.GetTask(userID, id)
	if err != nil {
		return nil, err
	}

	if params.Title != nil {
		if err := ValidateTitle(*params.Title); err != nil {
			return nil, err
		}
		t.Title = strings.TrimSpace(*params.Title)
	}
	if params.Description != nil {
		if err := ValidateDescription(*params.Description); err != nil {
			return nil, err
		}
		t.Description = *params.Description
	}
	if params.Priority != nil {
		if err := ValidatePriority(*params.Priority); err != nil {
			return nil, err
		}
		t.Priority = *params.Priority
	}
	if params.Due != nil {
		t.Due = params.Due
	}
	t.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateTask(t); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if params.Tags != nil {
		if err := s.assignTags(t, *params.Tags); err != nil {
			return nil, err
		}
	}

	s.publish(events.EventTaskUpdated, t)
	return t, nil
}

// Complete marks the user's task as done. Completing an already-done task is
// not an error; the second return value reports whether it was already done.
func (s *Service) Complete(userID, id string) (*Task, bool, error) {
	t, err := s.store.GetTask(userID, id)
	if err != nil {
		return nil, false, err
	}
	if t.Done {
		return t, true, nil
	}

	t.Done = true
	t.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateTask(t); err != nil {
		return nil, false, fmt.Errorf("complete task: %w", err)
	}

	s.publish(events.EventTaskCompleted, t)
	if t.Recurrence != nil {
		if err := s.spawnNextInstance(t); err != nil {
			return nil, false, err
		}
	}
	return t, false, nil
}

// spawnNextInstance creates the follow-up for a just-completed recurring
// task, unless the recurrence has run its course.
func (s *Service) spawnNextInstance(done *Task) error {
	rec := *done.Recurrence
	rec.Completed++

	from := time.Now().UTC()
	if done.Due != nil {
		from = *done.Due
	}
	next := rec.NextOccurrence(from)
	if !rec.Continues(next, rec.Completed) {
		return nil
	}

	now := time.Now().UTC()
	t := &Task{
		ID:          GenerateTaskID(),
		UserID:      done.UserID,
		Title:       done.Title,
		Description: done.Description,
		Priority:    done.Priority,
		Due:         &next,
		Recurrence:  &rec,
		ParentID:    done.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateTask(t); err != nil {
		return fmt.Errorf("spawn next occurrence: %w", err)
	}
	if len(done.Tags) > 0 {
		if err := s.assignTags(t, done.Tags); err != nil {
			return err
		}
	}

	s.publish(events.EventTaskCreated, t)
	return nil
}

// Delete removes the user's task and returns its last snapshot.
func (s *Service) Delete(userID, id string) (*Task, error) {
	t, err := s.store.GetTask(userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteTask(userID, id); err != nil {
		return nil, fmt.Errorf("delete task: %w", err)
	}

	s.publish(events.EventTaskDeleted, t)
	return t, nil
}

// CreateTag validates and persists a new tag for the user.
func (s *Service) CreateTag(userID string, params CreateTagParams) (*Tag, error) {
	if err := ValidateTagName(params.Name); err != nil {
		return nil, err
	}
	color := params.Color
	if color == "" {
		color = defaultTagColor
	}
	if err := ValidateTagColor(color); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(params.Name)
	if _, err := s.store.GetTagByName(userID, name); err == nil {
		return nil, fmt.Errorf("tag %q already exists", name)
	}

	t := &Tag{
		ID:        GenerateTagID(),
		UserID:    userID,
		Name:      name,
		Color:     color,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateTag(t); err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}
	return t, nil
}

// ListTags returns the user's tags with their task counts.
func (s *Service) ListTags(userID string) ([]*Tag, error) {
	return s.store.ListTags(userID)
}

// UpdateTag renames or recolors the user's tag.
func (s *Service) UpdateTag(userID, id string, params UpdateTagParams) (*Tag, error) {
	t, err := s.store.GetTag(userID, id)
	if err != nil {
		return nil, err
	}
	if params.Name != nil {
		if err := ValidateTagName(*params.Name); err != nil {
			return nil, err
		}
		name := strings.TrimSpace(*params.Name)
		if other, err := s.store.GetTagByName(userID, name); err == nil && other.ID != t.ID {
			return nil, fmt.Errorf("tag %q already exists", name)
		}
		t.Name = name
	}
	if params.Color != nil {
		if err := ValidateTagColor(*params.Color); err != nil {
			return nil, err
		}
		t.Color = *params.Color
	}
	if err := s.store.UpdateTag(t); err != nil {
		return nil, fmt.Errorf("update tag: %w", err)
	}
	return t, nil
}

// DeleteTag removes the user's tag. Tasks keep existing; only the
// associations go.
func (s *Service) DeleteTag(userID, id string) error {
	return s.store.DeleteTag(userID, id)
}

// assignTags resolves tag names (creating missing ones) and replaces the
// task's tag set. Names are deduplicated case-insensitively.
func (s *Service) assignTags(t *Task, names []string) error {
	var ids []string
	var resolved []string
	seen := make(map[string]bool)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		if err := ValidateTagName(name); err != nil {
			return err
		}

		tag, err := s.store.GetTagByName(t.UserID, name)
		if errors.Is(err, ErrTagNotFound) {
			tag = &Tag{
				ID:        GenerateTagID(),
				UserID:    t.UserID,
				Name:      name,
				Color:     defaultTagColor,
				CreatedAt: time.Now().UTC(),
			}
			err = s.store.CreateTag(tag)
		}
		if err != nil {
			return fmt.Errorf("resolve tag %q: %w", name, err)
		}
		ids = append(ids, tag.ID)
		resolved = append(resolved, tag.Name)
	}

	if err := s.store.SetTaskTags(t.UserID, t.ID, ids); err != nil {
		return fmt.Errorf("tag task: %w", err)
	}
	t.Tags = resolved
	return nil
}

// DueWithin returns pending tasks across all users whose due date falls before
// now+lookahead. Used by the reminder scanner.
func (s *Service) DueWithin(lookahead time.Duration) ([]*Task, error) {
	return s.store.ListDueTasks(time.Now().UTC().Add(lookahead))
}

func (s *Service) publish(eventType events.EventType, t *Task) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.NewUserEvent(eventType, events.SourceTasks, t.UserID, map[string]any{
		"task_id": t.ID,
		"title":   t.Title,
		"done":    t.Done,
	}))
}
