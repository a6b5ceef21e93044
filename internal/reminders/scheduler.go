// Package reminders periodically scans for tasks coming due and publishes
// reminder events for them.
package reminders

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	cron "github.com/netresearch/go-cron"

	"github.com/bonsai-todo/bonsai/internal/config"
	"github.com/bonsai-todo/bonsai/internal/events"
	"github.com/bonsai-todo/bonsai/internal/tasks"
)

// Scheduler runs the due-task scan on a cron schedule. Each task is reminded
// at most once per process lifetime.
type Scheduler struct {
	tasks     *tasks.Service
	bus       *events.Bus
	cron      *cron.Cron
	lookahead time.Duration

	mu       sync.Mutex
	notified map[string]struct{}
}

// New creates a reminder scheduler from config.
func New(taskService *tasks.Service, bus *events.Bus, cfg config.RemindersConfig) (*Scheduler, error) {
	s := &Scheduler{
		tasks:     taskService,
		bus:       bus,
		cron:      cron.New(),
		lookahead: cfg.Lookahead.Duration(),
		notified:  make(map[string]struct{}),
	}
	if s.lookahead <= 0 {
		s.lookahead = time.Hour
	}

	spec := cfg.Cron
	if spec == "" {
		spec = "* * * * *"
	}
	if _, err := s.cron.AddFunc(spec, s.Scan); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("reminder scheduler started", "lookahead", s.lookahead)
}

// Stop halts the cron loop. Running scans finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("reminder scheduler stopped")
}

// Scan publishes a reminder event for every pending task due within the
// lookahead window that has not been reminded yet.
func (s *Scheduler) Scan() {
	due, err := s.tasks.DueWithin(s.lookahead)
	if err != nil {
		slog.Error("reminder scan failed", "error", err)
		return
	}

	for _, t := range due {
		if !s.markNotified(t.ID) {
			continue
		}
		slog.Info("task due", "task_id", t.ID, "user_id", t.UserID, "due", t.Due)
		s.bus.Publish(events.NewUserEvent(events.EventReminderDue, events.SourceReminders, t.UserID, map[string]any{
			"task_id": t.ID,
			"title":   t.Title,
			"due":     t.Due,
		}))
	}
}

// markNotified records the reminder, reporting false when one was already
// sent for this task.
func (s *Scheduler) markNotified(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.notified[taskID]; seen {
		return false
	}
	s.notified[taskID] = struct{}{}
	return true
}
