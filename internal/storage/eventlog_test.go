package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bonsai-todo/bonsai/internal/events"
)

func TestEventLogger_WriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewBus(64)
	defer bus.Close()

	el := NewEventLogger(dir, bus)
	defer el.Close()

	bus.Publish(events.Event{
		ID:        "evt-1",
		Type:      events.EventTaskCreated,
		Timestamp: time.Now(),
		Source:    events.SourceTasks,
		Payload:   map[string]any{"title": "buy milk"},
	})

	// Give the async subscriber time to process.
	time.Sleep(100 * time.Millisecond)

	data, err := os.ReadFile(filepath.Join(dir, "_global.jsonl"))
	if err != nil {
		t.Fatalf("read JSONL: %v", err)
	}

	var got events.Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != "evt-1" {
		t.Errorf("got ID %q, want %q", got.ID, "evt-1")
	}
	if got.Type != events.EventTaskCreated {
		t.Errorf("got type %q, want %q", got.Type, events.EventTaskCreated)
	}
}

func TestEventLogger_UserRouting(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewBus(64)
	defer bus.Close()

	el := NewEventLogger(dir, bus)
	defer el.Close()

	bus.Publish(events.NewUserEvent(events.EventChatExecuted, events.SourceChat, "alice", nil))
	bus.Publish(events.NewEvent(events.EventReminderDue, events.SourceReminders, nil))

	time.Sleep(100 * time.Millisecond)

	if _, err := os.Stat(filepath.Join(dir, "alice.jsonl")); err != nil {
		t.Errorf("expected per-user log: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "_global.jsonl")); err != nil {
		t.Errorf("expected global log: %v", err)
	}
}

func TestEventLogger_SkipsInterpretationEvents(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewBus(64)
	defer bus.Close()

	el := NewEventLogger(dir, bus)
	defer el.Close()

	bus.Publish(events.NewUserEvent(events.EventChatInterpreted, events.SourceChat, "alice", nil))

	time.Sleep(100 * time.Millisecond)

	if _, err := os.Stat(filepath.Join(dir, "alice.jsonl")); !os.IsNotExist(err) {
		t.Errorf("interpretation events should not be logged: %v", err)
	}
}

func TestEventLogger_TraversalUserIDStaysInDir(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "nested", "events")
	bus := events.NewBus(64)
	defer bus.Close()

	el := NewEventLogger(dir, bus)
	defer el.Close()

	err := el.writeEvent(events.NewUserEvent(events.EventTaskCreated, events.SourceTasks, "../../escaped", nil))
	if err != nil {
		t.Fatalf("writeEvent: %v", err)
	}

	// Nothing may land outside the events directory.
	if _, err := os.Stat(filepath.Join(parent, "escaped.jsonl")); !os.IsNotExist(err) {
		t.Fatalf("audit record written outside events dir: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read events dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log file in %s, got %d", dir, len(entries))
	}
	if filepath.Clean(filepath.Join(dir, entries[0].Name())) != filepath.Join(dir, entries[0].Name()) {
		t.Fatalf("unclean log name %q", entries[0].Name())
	}
}

func TestSanitizeLogName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"alice", "alice"},
		{"user-1_a.b", "user-1_a.b"},
		{"../../escaped", ".._.._escaped"},
		{`a\b`, "a_b"},
		{"..", "_user"},
		{".", "_user"},
		{"a b", "a_b"},
	}
	for _, tt := range tests {
		if got := sanitizeLogName(tt.in); got != tt.want {
			t.Errorf("sanitizeLogName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
