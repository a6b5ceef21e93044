package reminders

import (
	"sync"
	"testing"
	"time"

	"github.com/bonsai-todo/bonsai/internal/config"
	"github.com/bonsai-todo/bonsai/internal/events"
	"github.com/bonsai-todo/bonsai/internal/tasks"
)

type memStore struct {
	items map[string]*tasks.Task
}

func (s *memStore) CreateTask(t *tasks.Task) error {
	s.items[t.ID] = t
	return nil
}

func (s *memStore) GetTask(userID, id string) (*tasks.Task, error) {
	t, ok := s.items[id]
	if !ok || t.UserID != userID {
		return nil, tasks.ErrNotFound
	}
	return t, nil
}

func (s *memStore) ListTasks(userID string, filter tasks.ListFilter) ([]*tasks.Task, error) {
	return nil, nil
}

func (s *memStore) UpdateTask(t *tasks.Task) error {
	s.items[t.ID] = t
	return nil
}

func (s *memStore) DeleteTask(userID, id string) error {
	delete(s.items, id)
	return nil
}

func (s *memStore) ListDueTasks(before time.Time) ([]*tasks.Task, error) {
	var out []*tasks.Task
	for _, t := range s.items {
		if !t.Done && t.Due != nil && t.Due.Before(before) {
			out = append(out, t)
		}
	}
	return out, nil
}

// The reminder scanner never touches tags.
func (s *memStore) CreateTag(*tasks.Tag) error             { return nil }
func (s *memStore) GetTag(_, _ string) (*tasks.Tag, error) { return nil, tasks.ErrTagNotFound }
func (s *memStore) GetTagByName(_, _ string) (*tasks.Tag, error) {
	return nil, tasks.ErrTagNotFound
}
func (s *memStore) ListTags(string) ([]*tasks.Tag, error)     { return nil, nil }
func (s *memStore) UpdateTag(*tasks.Tag) error                { return tasks.ErrTagNotFound }
func (s *memStore) DeleteTag(_, _ string) error               { return tasks.ErrTagNotFound }
func (s *memStore) SetTaskTags(_, _ string, _ []string) error { return nil }

func newScheduler(t *testing.T, store *memStore, bus *events.Bus) *Scheduler {
	t.Helper()
	s, err := New(tasks.NewService(store, nil), bus, config.RemindersConfig{
		Cron:      "* * * * *",
		Lookahead: config.Duration(time.Hour),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestScanPublishesDueTasks(t *testing.T) {
	store := &memStore{items: make(map[string]*tasks.Task)}
	bus := events.NewBus(16)
	defer bus.Close()

	var mu sync.Mutex
	var got []events.Event
	bus.Subscribe(func(e events.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	}, events.EventReminderDue)

	soon := time.Now().UTC().Add(10 * time.Minute)
	store.CreateTask(&tasks.Task{ID: "task_due1", UserID: "alice", Title: "soon", Due: &soon})
	later := time.Now().UTC().Add(48 * time.Hour)
	store.CreateTask(&tasks.Task{ID: "task_due2", UserID: "alice", Title: "later", Due: &later})

	s := newScheduler(t, store, bus)
	s.Scan()

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no reminder event published")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].UserID != "alice" || got[0].Payload["task_id"] != "task_due1" {
		t.Errorf("unexpected event: %+v", got[0])
	}
}

func TestScanRemindsOnce(t *testing.T) {
	store := &memStore{items: make(map[string]*tasks.Task)}
	bus := events.NewBus(16)
	defer bus.Close()

	var mu sync.Mutex
	count := 0
	bus.Subscribe(func(e events.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	}, events.EventReminderDue)

	soon := time.Now().UTC().Add(5 * time.Minute)
	store.CreateTask(&tasks.Task{ID: "task_once", UserID: "alice", Title: "once", Due: &soon})

	s := newScheduler(t, store, bus)
	s.Scan()
	s.Scan()
	s.Scan()

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("reminded %d times, want 1", count)
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	store := &memStore{items: make(map[string]*tasks.Task)}
	_, err := New(tasks.NewService(store, nil), events.NewBus(1), config.RemindersConfig{Cron: "not a cron"})
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}
