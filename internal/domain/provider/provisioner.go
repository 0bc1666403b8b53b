package provider

import (
	"context"
	"strings"

	"jan-server/services/dispatch-api/internal/domain/outcome"
	"jan-server/services/dispatch-api/internal/domain/txn"
	"jan-server/services/dispatch-api/internal/utils/crypto"
	"jan-server/services/dispatch-api/internal/utils/idgen"
	"jan-server/services/dispatch-api/internal/utils/platformerrors"
)

// KeyProvisioner writes providers and encrypted keys. It is the only writer of key
// material; the fingerprint lets a restart skip keys that are already stored.
type KeyProvisioner struct {
	tx        txn.Runner
	providers ProviderRepository
	keys      KeyRepository
	secret    string
}

func NewKeyProvisioner(tx txn.Runner, providers ProviderRepository, keys KeyRepository, secret string) *KeyProvisioner {
	return &KeyProvisioner{
		tx:        tx,
		providers: providers,
		keys:      keys,
		secret:    secret,
	}
}

type ProvisionKeyInput struct {
	Plaintext  string
	Label      string
	ModelID    *string
	DailyLimit *int64
}

// EnsureProvider upserts p by code and fills in its ID.
func (s *KeyProvisioner) EnsureProvider(ctx context.Context, p *Provider) error {
	if strings.TrimSpace(p.Code) == "" {
		return outcome.Validation("provider code is required")
	}
	if err := s.providers.Upsert(ctx, p); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to upsert provider")
	}
	return nil
}

// AddKey stores a key for providerID unless the same plaintext is already pooled there.
// The returned bool reports whether a new row was created.
func (s *KeyProvisioner) AddKey(ctx context.Context, providerID uint, in ProvisionKeyInput) (*ProviderKey, bool, error) {
	plaintext := strings.TrimSpace(in.Plaintext)
	if plaintext == "" {
		return nil, false, outcome.Validation("key is required")
	}
	fingerprint := idgen.HashKey256(plaintext, []byte(s.secret))

	var (
		result  *ProviderKey
		created bool
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.keys.FindByFingerprint(ctx, providerID, fingerprint)
		if err != nil {
			return err
		}
		if existing != nil {
			result = existing
			return nil
		}

		encrypted, err := crypto.EncryptString(s.secret, plaintext)
		if err != nil {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
				"failed to encrypt provider key", err, "5d8e2a41-0c7b-4f93-a6e1-b2f49c37d810")
		}
		key := &ProviderKey{
			ProviderID:   providerID,
			ModelID:      in.ModelID,
			Label:        in.Label,
			EncryptedKey: encrypted,
			Fingerprint:  fingerprint,
			DailyLimit:   in.DailyLimit,
			Status:       KeyStatusActive,
		}
		if err := s.keys.Create(ctx, key); err != nil {
			return err
		}
		result = key
		created = true
		return nil
	})
	if err != nil {
		return nil, false, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to provision provider key")
	}
	return result, created, nil
}
