package dbschema

import (
	"jan-server/services/dispatch-api/internal/domain/chat"
	"jan-server/services/dispatch-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(ChatSession{})
}

type ChatSession struct {
	BaseModel
	PublicID   string `gorm:"size:64;not null;uniqueIndex"`
	OwnerID    string `gorm:"size:128;not null;index"`
	ProviderID uint   `gorm:"not null"`
	KeyID      uint   `gorm:"not null"`
	ModelName  string `gorm:"size:255;not null"`
	Title      string `gorm:"size:255;not null"`
	Status     string `gorm:"size:32;not null;default:'active'"`
}

func NewSchemaChatSession(s *chat.Session) *ChatSession {
	return &ChatSession{
		BaseModel: BaseModel{
			ID:        s.ID,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		},
		PublicID:   s.PublicID,
		OwnerID:    s.OwnerID,
		ProviderID: s.ProviderID,
		KeyID:      s.KeyID,
		ModelName:  s.ModelName,
		Title:      s.Title,
		Status:     string(s.Status),
	}
}

func (s *ChatSession) EtoD() *chat.Session {
	return &chat.Session{
		ID:         s.ID,
		PublicID:   s.PublicID,
		OwnerID:    s.OwnerID,
		ProviderID: s.ProviderID,
		KeyID:      s.KeyID,
		ModelName:  s.ModelName,
		Title:      s.Title,
		Status:     chat.SessionStatus(s.Status),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}
