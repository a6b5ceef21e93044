package chat

import (
	"errors"
	"time"

	"github.com/bonsai-todo/bonsai/internal/ai"
)

// ErrNoPending is returned when a confirmation arrives with nothing to
// confirm.
var ErrNoPending = errors.New("no pending command")

// pendingTTL bounds how long a confirmation stays answerable.
const pendingTTL = 5 * time.Minute

// PendingCommand is a command parked for user confirmation. At most one
// exists per conversation; a newer one replaces it.
type PendingCommand struct {
	ConversationID string     `json:"conversation_id"`
	UserID         string     `json:"user_id"`
	Command        ai.Command `json:"command"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Expired reports whether the confirmation window has passed.
func (p *PendingCommand) Expired(now time.Time) bool {
	return now.Sub(p.CreatedAt) > pendingTTL
}

// PendingStore persists pending commands across requests.
type PendingStore interface {
	PutPending(p *PendingCommand) error
	GetPending(conversationID string) (*PendingCommand, error)
	DeletePending(conversationID string) error
}
