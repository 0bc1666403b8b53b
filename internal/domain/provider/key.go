package provider

import (
	"context"
	"time"
)

type KeyStatus string

const (
	KeyStatusActive      KeyStatus = "active"
	KeyStatusRateLimited KeyStatus = "rate_limited"
	KeyStatusDisabled    KeyStatus = "disabled"
)

// ProviderKey is one credential in a provider's pool. RateLimitResetAt is set iff
// Status is rate_limited. Disabled is set by admins only and is never recovered here.
type ProviderKey struct {
	ID               uint       `json:"id"`
	ProviderID       uint       `json:"provider_id"`
	ModelID          *string    `json:"model_id,omitempty"`
	Label            string     `json:"label"`
	EncryptedKey     string     `json:"-"`
	Fingerprint      string     `json:"-"`
	UsageCount       int64      `json:"usage_count"`
	DailyUsage       int64      `json:"daily_usage"`
	DailyLimit       *int64     `json:"daily_limit,omitempty"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`
	Status           KeyStatus  `json:"status"`
	RateLimitResetAt *time.Time `json:"rate_limit_reset_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CoolingDown reports whether the key is rate limited with a reset still ahead of now.
func (k *ProviderKey) CoolingDown(now time.Time) bool {
	return k.Status == KeyStatusRateLimited && k.RateLimitResetAt != nil && k.RateLimitResetAt.After(now)
}

// KeyClaimFilter narrows the pool a claim draws from. A non-nil ModelID selects a
// model-scoped pool, which also enforces the daily cap.
type KeyClaimFilter struct {
	ProviderID uint
	ModelID    *string
}

type KeyRepository interface {
	Create(ctx context.Context, key *ProviderKey) error
	FindByID(ctx context.Context, id uint) (*ProviderKey, error)
	FindByFingerprint(ctx context.Context, providerID uint, fingerprint string) (*ProviderKey, error)
	FindAll(ctx context.Context) ([]*ProviderKey, error)

	// ClaimLeastUsed picks the least used eligible key and increments its usage in one
	// conditional statement. It returns nil when no key is eligible.
	ClaimLeastUsed(ctx context.Context, filter KeyClaimFilter, now time.Time) (*ProviderKey, error)

	// MarkRateLimited parks a non-disabled key until resetAt, keeping the later reset if
	// the key is already parked.
	MarkRateLimited(ctx context.Context, id uint, resetAt time.Time, now time.Time) (bool, error)

	// Recover moves one rate-limited key whose reset has elapsed back to active.
	Recover(ctx context.Context, id uint, now time.Time) (bool, error)

	// RecoverExpired moves every rate-limited key whose reset has elapsed back to active
	// and returns their ids.
	RecoverExpired(ctx context.Context, now time.Time) ([]uint, error)

	TouchLastUsed(ctx context.Context, id uint, now time.Time) error
	ResetDailyUsage(ctx context.Context, now time.Time) (int64, error)
}
