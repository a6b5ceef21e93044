// Package conversations provides the persistent chat history for each user.
package conversations

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a conversation does not exist or belongs to
// another user.
var ErrNotFound = errors.New("conversation not found")

const maxTitleLen = 100

// Role identifies the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversation is a chat session owned by a single user.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single turn in a conversation. Messages are immutable after
// creation; the log is append-only.
type Message struct {
	ID               string    `json:"id"`
	ConversationID   string    `json:"conversation_id"`
	Role             Role      `json:"role"`
	Content          string    `json:"content"`
	GeneratedCommand string    `json:"generated_command,omitempty"` // assistant turns only
	Confidence       *float64  `json:"confidence,omitempty"`        // assistant turns only
	CreatedAt        time.Time `json:"created_at"`
}

// Store defines the persistence interface for conversations and messages.
type Store interface {
	CreateConversation(c *Conversation) error
	GetConversation(userID, id string) (*Conversation, error)
	ListConversations(userID string) ([]*Conversation, error)
	DeleteConversation(userID, id string) error
	TouchConversation(id string, updatedAt time.Time) error
	SetConversationTitle(id, title string) error
	AppendMessage(m *Message) error
	ListMessages(conversationID string, limit int) ([]*Message, error)
}

// GenerateConversationID creates a unique conversation identifier.
func GenerateConversationID() string {
	u := uuid.New().String()
	return "conv_" + strings.ReplaceAll(u[:8], "-", "")
}

// GenerateMessageID creates a unique message identifier.
func GenerateMessageID() string {
	u := uuid.New().String()
	return "msg_" + strings.ReplaceAll(u[:8], "-", "")
}

// TitleFromMessage derives a conversation title from its first user message.
// Truncation counts runes so a multi-byte character is never split.
func TitleFromMessage(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(title) > maxTitleLen {
		runes := []rune(title)
		title = string(runes[:maxTitleLen-3]) + "..."
	}
	return title
}
