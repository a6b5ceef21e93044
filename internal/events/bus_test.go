package events

import (
	"sync"
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var mu sync.Mutex
	var received []Event

	bus.Subscribe(func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	}, EventTaskCreated)

	bus.Publish(NewEvent(EventTaskCreated, SourceTasks, map[string]any{"title": "buy milk"}))
	bus.Publish(NewEvent(EventChatMessage, SourceChat, map[string]any{"content": "hello"}))

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].Type != EventTaskCreated {
		t.Errorf("expected task.created, got %s", received[0].Type)
	}
}

func TestBusSubscribeAll(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var mu sync.Mutex
	count := 0

	bus.Subscribe(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Publish(NewEvent(EventTaskCreated, SourceTasks, nil))
	bus.Publish(NewEvent(EventReminderDue, SourceReminders, nil))

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if count != 2 {
		t.Errorf("expected 2 events, got %d", count)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var mu sync.Mutex
	count := 0

	unsub := bus.Subscribe(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Publish(NewEvent(EventTaskCreated, SourceTasks, nil))
	time.Sleep(50 * time.Millisecond)

	unsub()

	bus.Publish(NewEvent(EventTaskDeleted, SourceTasks, nil))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if count != 1 {
		t.Errorf("expected 1 event after unsubscribe, got %d", count)
	}
}

func TestBusHistory(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	for i := 0; i < 12; i++ {
		bus.Publish(NewEvent(EventTaskUpdated, SourceTasks, map[string]any{"n": i}))
	}

	time.Sleep(50 * time.Millisecond)

	history := bus.History(8)
	if len(history) != 8 {
		t.Fatalf("expected 8 events in history, got %d", len(history))
	}
	// Oldest retained event should be n=4 after wraparound.
	if got := history[0].Payload["n"]; got != 4 {
		t.Errorf("expected oldest event n=4, got %v", got)
	}
}

func TestBusPublishAfterClose(t *testing.T) {
	bus := NewBus(8)
	bus.Close()

	// Must not panic.
	bus.Publish(NewEvent(EventTaskCreated, SourceTasks, nil))
}

func TestBusCloseDuringPublish(t *testing.T) {
	bus := NewBus(4)

	// Publishers racing Close must never panic, even when one passes the
	// closed-flag check just before shutdown.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(NewEvent(EventTaskCreated, SourceTasks, nil))
			}
		}()
	}

	time.Sleep(time.Millisecond)
	bus.Close()
	wg.Wait()
}

func TestUserEvent(t *testing.T) {
	e := NewUserEvent(EventTaskCompleted, SourceTasks, "user-1", nil)
	if e.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", e.UserID)
	}
	if e.ID == "" {
		t.Error("expected non-empty event ID")
	}
}
