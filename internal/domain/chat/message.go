package chat

import (
	"context"
	"time"

	"jan-server/services/dispatch-api/internal/utils/idgen"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is append-only; history is ordered by creation time.
type Message struct {
	ID         uint      `json:"-"`
	PublicID   string    `json:"id"`
	SessionID  uint      `json:"-"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	TokenCount *int      `json:"token_count,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type MessageRepository interface {
	Append(ctx context.Context, m *Message) error
	ListBySession(ctx context.Context, sessionID uint) ([]*Message, error)
}

// NewMessage builds a message with a fresh public id.
func NewMessage(sessionID uint, role Role, content string, tokenCount *int, now time.Time) (*Message, error) {
	publicID, err := idgen.GenerateSecureID("msg", 16)
	if err != nil {
		return nil, err
	}
	return &Message{
		PublicID:   publicID,
		SessionID:  sessionID,
		Role:       role,
		Content:    content,
		TokenCount: tokenCount,
		CreatedAt:  now,
	}, nil
}
