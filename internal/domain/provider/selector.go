package provider

import (
	"context"
	"fmt"
	"strings"

	"jan-server/services/dispatch-api/internal/domain/clock"
	"jan-server/services/dispatch-api/internal/domain/outcome"
	"jan-server/services/dispatch-api/internal/infrastructure/logger"
	"jan-server/services/dispatch-api/internal/infrastructure/metrics"
	"jan-server/services/dispatch-api/internal/utils/platformerrors"
)

// Selection is the result of claiming a key for a provider.
type Selection struct {
	KeyID              uint  `json:"key_id"`
	UsagePostIncrement int64 `json:"usage_count"`
}

// KeySelector load-balances a provider's key pool by least usage.
//
// Concurrent claims may both observe the same least used key; the conditional
// update only bounds that race, so usage counts can skew under load. A claim never
// returns a key that is not active.
type KeySelector struct {
	providers ProviderRepository
	keys      KeyRepository
	clock     clock.Clock
}

func NewKeySelector(providers ProviderRepository, keys KeyRepository, clk clock.Clock) *KeySelector {
	return &KeySelector{
		providers: providers,
		keys:      keys,
		clock:     clk,
	}
}

// SelectKey claims the least used eligible key of the provider. It fails with
// NoAvailableKey when the provider is disabled or its pool has no eligible key.
func (s *KeySelector) SelectKey(ctx context.Context, p *Provider, modelID *string) (*ProviderKey, error) {
	if !p.Enabled {
		metrics.RecordKeySelection(p.Code, "provider_disabled")
		return nil, outcome.NoAvailableKey(fmt.Sprintf("provider %s is disabled", p.Code))
	}

	filter := KeyClaimFilter{ProviderID: p.ID}
	if modelID != nil && strings.TrimSpace(*modelID) != "" {
		trimmed := strings.TrimSpace(*modelID)
		filter.ModelID = &trimmed
	}

	key, err := s.keys.ClaimLeastUsed(ctx, filter, s.clock.Now())
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to claim provider key")
	}
	if key == nil {
		metrics.RecordKeySelection(p.Code, "no_available_key")
		log := logger.GetLogger()
		log.Warn().Str("provider", p.Code).Msg("no eligible key in pool")
		return nil, outcome.NoAvailableKey(fmt.Sprintf("no available key for provider %s", p.Code))
	}

	metrics.RecordKeySelection(p.Code, "claimed")
	return key, nil
}

// SelectKeyForProvider resolves the provider by code and claims a key from its pool.
func (s *KeySelector) SelectKeyForProvider(ctx context.Context, providerCode string, modelID *string) (*Selection, error) {
	p, err := s.providers.FindByCode(ctx, providerCode)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load provider")
	}
	if p == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("provider %q not found", providerCode), nil, "3b7e1c9a-6d4f-4a28-b5e0-9c1f7a2d8e41")
	}

	key, err := s.SelectKey(ctx, p, modelID)
	if err != nil {
		return nil, err
	}
	return &Selection{KeyID: key.ID, UsagePostIncrement: key.UsageCount}, nil
}
