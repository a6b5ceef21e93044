package conversations

import (
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Service provides user-scoped conversation and message operations.
type Service struct {
	store Store
}

// NewService creates a conversation service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// GetOrCreate returns the conversation when id names one owned by the user,
// otherwise it creates a fresh conversation. Conversations are created lazily
// on the first message.
func (s *Service) GetOrCreate(userID, id string) (*Conversation, error) {
	if id != "" {
		c, err := s.store.GetConversation(userID, id)
		if err == nil {
			return c, nil
		}
	}

	now := time.Now().UTC()
	c := &Conversation{
		ID:        GenerateConversationID(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(c); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

// Get returns the user's conversation by ID.
func (s *Service) Get(userID, id string) (*Conversation, error) {
	return s.store.GetConversation(userID, id)
}

// List returns the user's conversations, most recently active first.
func (s *Service) List(userID string) ([]*Conversation, error) {
	return s.store.ListConversations(userID)
}

// Delete removes the user's conversation and its messages.
func (s *Service) Delete(userID, id string) error {
	return s.store.DeleteConversation(userID, id)
}

// AppendUser appends a user turn to the conversation.
func (s *Service) AppendUser(conversationID, content string) (*Message, error) {
	m := &Message{
		ID:             GenerateMessageID(),
		ConversationID: conversationID,
		Role:           RoleUser,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.append(m); err != nil {
		return nil, err
	}
	return m, nil
}

// AppendAssistant appends an assistant turn, recording the generated CLI
// command and interpretation confidence alongside the text.
func (s *Service) AppendAssistant(conversationID, content, generatedCommand string, confidence float64) (*Message, error) {
	m := &Message{
		ID:               GenerateMessageID(),
		ConversationID:   conversationID,
		Role:             RoleAssistant,
		Content:          content,
		GeneratedCommand: generatedCommand,
		Confidence:       &confidence,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.append(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) append(m *Message) error {
	if err := s.store.AppendMessage(m); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	// Keep the conversation's activity timestamp in step with its log.
	return s.store.TouchConversation(m.ConversationID, m.CreatedAt)
}

// Messages returns the newest messages of a conversation in chronological
// order. limit <= 0 returns everything.
func (s *Service) Messages(conversationID string, limit int) ([]*Message, error) {
	return s.store.ListMessages(conversationID, limit)
}

// HistoryForModel returns the newest turns as eino schema messages, ready to
// prepend to a model prompt.
func (s *Service) HistoryForModel(conversationID string, limit int) ([]*schema.Message, error) {
	msgs, err := s.store.ListMessages(conversationID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, &schema.Message{
			Role:    schema.RoleType(m.Role),
			Content: m.Content,
		})
	}
	return out, nil
}

// AutoTitle sets the conversation title from its first user message if no
// title has been set yet.
func (s *Service) AutoTitle(userID, conversationID string) error {
	c, err := s.store.GetConversation(userID, conversationID)
	if err != nil {
		return err
	}
	if c.Title != "" {
		return nil
	}

	msgs, err := s.store.ListMessages(conversationID, 0)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if m.Role == RoleUser {
			return s.store.SetConversationTitle(conversationID, TitleFromMessage(m.Content))
		}
	}
	return nil
}
