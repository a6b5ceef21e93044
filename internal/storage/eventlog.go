package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bonsai-todo/bonsai/internal/events"
)

// EventLogger persists bus events to JSONL files, one file per user plus a
// shared file for unscoped events. The log is an audit trail; readers tail
// the files directly.
type EventLogger struct {
	dir         string
	unsubscribe func()
}

// NewEventLogger subscribes to all bus events and appends them under dir.
func NewEventLogger(dir string, bus *events.Bus) *EventLogger {
	el := &EventLogger{dir: dir}
	el.unsubscribe = bus.Subscribe(el.handleEvent)
	return el
}

// Close unsubscribes the logger from the event bus.
func (el *EventLogger) Close() {
	if el.unsubscribe != nil {
		el.unsubscribe()
	}
}

func (el *EventLogger) handleEvent(e events.Event) {
	// Interpretation events duplicate what chat.executed/fallback carry.
	if e.Type == events.EventChatInterpreted {
		return
	}
	_ = el.writeEvent(e)
}

func (el *EventLogger) writeEvent(e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	path := el.logPath(e.UserID)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

func (el *EventLogger) logPath(userID string) string {
	if userID == "" {
		return filepath.Join(el.dir, "_global.jsonl")
	}
	return filepath.Join(el.dir, sanitizeLogName(userID)+".jsonl")
}

// sanitizeLogName makes a user ID safe to use as a file name. The gateway
// validates IDs on the way in, but the log must hold even for events built
// from an unchecked source: anything outside [A-Za-z0-9._-] becomes '_', and
// a name that is only dots (".", "..") is fully replaced.
func sanitizeLogName(id string) string {
	safe := []byte(id)
	onlyDots := true
	for i := 0; i < len(safe); i++ {
		c := safe[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '.', c == '_', c == '-':
			if c != '.' {
				onlyDots = false
			}
		default:
			safe[i] = '_'
			onlyDots = false
		}
	}
	if onlyDots {
		return "_user"
	}
	return string(safe)
}
