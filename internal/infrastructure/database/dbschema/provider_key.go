package dbschema

import (
	"time"

	"jan-server/services/dispatch-api/internal/domain/provider"
	"jan-server/services/dispatch-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(ProviderKey{})
}

type ProviderKey struct {
	BaseModel
	ProviderID       uint    `gorm:"not null;index"`
	ModelID          *string `gorm:"size:255"`
	Label            string  `gorm:"size:255;not null"`
	EncryptedKey     string  `gorm:"type:text;not null"`
	Fingerprint      string  `gorm:"size:64;not null"`
	UsageCount       int64   `gorm:"not null;default:0"`
	DailyUsage       int64   `gorm:"not null;default:0"`
	DailyLimit       *int64
	LastUsedAt       *time.Time
	Status           string `gorm:"size:32;not null;default:'active'"`
	RateLimitResetAt *time.Time
}

func NewSchemaProviderKey(k *provider.ProviderKey) *ProviderKey {
	return &ProviderKey{
		BaseModel: BaseModel{
			ID:        k.ID,
			CreatedAt: k.CreatedAt,
			UpdatedAt: k.UpdatedAt,
		},
		ProviderID:       k.ProviderID,
		ModelID:          k.ModelID,
		Label:            k.Label,
		EncryptedKey:     k.EncryptedKey,
		Fingerprint:      k.Fingerprint,
		UsageCount:       k.UsageCount,
		DailyUsage:       k.DailyUsage,
		DailyLimit:       k.DailyLimit,
		LastUsedAt:       k.LastUsedAt,
		Status:           string(k.Status),
		RateLimitResetAt: k.RateLimitResetAt,
	}
}

func (k *ProviderKey) EtoD() *provider.ProviderKey {
	return &provider.ProviderKey{
		ID:               k.ID,
		ProviderID:       k.ProviderID,
		ModelID:          k.ModelID,
		Label:            k.Label,
		EncryptedKey:     k.EncryptedKey,
		Fingerprint:      k.Fingerprint,
		UsageCount:       k.UsageCount,
		DailyUsage:       k.DailyUsage,
		DailyLimit:       k.DailyLimit,
		LastUsedAt:       k.LastUsedAt,
		Status:           provider.KeyStatus(k.Status),
		RateLimitResetAt: k.RateLimitResetAt,
		CreatedAt:        k.CreatedAt,
		UpdatedAt:        k.UpdatedAt,
	}
}
