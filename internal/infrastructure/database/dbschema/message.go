package dbschema

import (
	"time"

	"jan-server/services/dispatch-api/internal/domain/chat"
	"jan-server/services/dispatch-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Message{})
}

// Message rows are append-only, so there is no updated_at column.
type Message struct {
	ID         uint      `gorm:"primaryKey"`
	PublicID   string    `gorm:"size:64;not null;uniqueIndex"`
	SessionID  uint      `gorm:"not null;index"`
	Role       string    `gorm:"size:16;not null"`
	Content    string    `gorm:"type:text;not null"`
	TokenCount *int
	CreatedAt  time.Time `gorm:"not null"`
}

func NewSchemaMessage(m *chat.Message) *Message {
	return &Message{
		ID:         m.ID,
		PublicID:   m.PublicID,
		SessionID:  m.SessionID,
		Role:       string(m.Role),
		Content:    m.Content,
		TokenCount: m.TokenCount,
		CreatedAt:  m.CreatedAt,
	}
}

func (m *Message) EtoD() *chat.Message {
	return &chat.Message{
		ID:         m.ID,
		PublicID:   m.PublicID,
		SessionID:  m.SessionID,
		Role:       chat.Role(m.Role),
		Content:    m.Content,
		TokenCount: m.TokenCount,
		CreatedAt:  m.CreatedAt,
	}
}
