package chat

import (
	"context"
	"time"
)

type SessionStatus string

const (
	SessionStatusActive           SessionStatus = "active"
	SessionStatusPendingRateLimit SessionStatus = "pending_rate_limit"
)

// Session is a chat pinned for its whole lifetime to the provider key chosen at creation.
// A pending_rate_limit session implies its key is (or was, until recovery) rate limited.
type Session struct {
	ID         uint          `json:"-"`
	PublicID   string        `json:"id"`
	OwnerID    string        `json:"owner_id"`
	ProviderID uint          `json:"provider_id"`
	KeyID      uint          `json:"key_id"`
	ModelName  string        `json:"model"`
	Title      string        `json:"title,omitempty"`
	Status     SessionStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	FindByPublicID(ctx context.Context, publicID string) (*Session, error)

	// MarkPending parks an active session.
	MarkPending(ctx context.Context, id uint, now time.Time) (bool, error)

	// Reactivate un-parks one pending session.
	Reactivate(ctx context.Context, id uint, now time.Time) (bool, error)

	// ReactivateForKeys un-parks pending sessions pinned to any of keyIDs or to a key
	// that is currently active, returning how many changed.
	ReactivateForKeys(ctx context.Context, keyIDs []uint, now time.Time) (int64, error)
}
