package provider

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"jan-server/services/dispatch-api/internal/domain/clock"
	"jan-server/services/dispatch-api/internal/infrastructure/logger"
	"jan-server/services/dispatch-api/internal/infrastructure/metrics"
	"jan-server/services/dispatch-api/internal/utils/functional"
	"jan-server/services/dispatch-api/internal/utils/platformerrors"
)

// PoolStatus summarizes one provider's key pool.
type PoolStatus struct {
	Code            string     `json:"code"`
	DisplayName     string     `json:"display_name"`
	Enabled         bool       `json:"enabled"`
	Adapter         string     `json:"adapter"`
	ActiveKeys      int        `json:"active_keys"`
	RateLimitedKeys int        `json:"rate_limited_keys"`
	DisabledKeys    int        `json:"disabled_keys"`
	TotalUsage      int64      `json:"total_usage"`
	NextResetAt     *time.Time `json:"next_reset_at,omitempty"`

	// DailyUtilization is daily usage over daily limit across capped keys, nil when no key is capped.
	DailyUtilization *decimal.Decimal `json:"daily_utilization,omitempty"`
}

// PoolService reports on and maintains key pools outside of dispatch.
type PoolService struct {
	providers ProviderRepository
	keys      KeyRepository
	clock     clock.Clock
}

func NewPoolService(providers ProviderRepository, keys KeyRepository, clk clock.Clock) *PoolService {
	return &PoolService{providers: providers, keys: keys, clock: clk}
}

// PoolStatus returns a report per provider ordered by code.
func (s *PoolService) PoolStatus(ctx context.Context) ([]PoolStatus, error) {
	providers, err := s.providers.FindAll(ctx)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list providers")
	}
	keys, err := s.keys.FindAll(ctx)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list provider keys")
	}

	byProvider := functional.GroupBy(keys, func(k *ProviderKey) uint { return k.ProviderID })
	now := s.clock.Now()

	report := functional.Map(providers, func(p *Provider) PoolStatus {
		status := summarize(p, byProvider[p.ID], now)
		metrics.SetKeyPoolSize(p.Code, string(KeyStatusActive), status.ActiveKeys)
		metrics.SetKeyPoolSize(p.Code, string(KeyStatusRateLimited), status.RateLimitedKeys)
		metrics.SetKeyPoolSize(p.Code, string(KeyStatusDisabled), status.DisabledKeys)
		return status
	})
	sort.Slice(report, func(i, j int) bool { return report[i].Code < report[j].Code })
	return report, nil
}

func summarize(p *Provider, keys []*ProviderKey, now time.Time) PoolStatus {
	status := PoolStatus{
		Code:        p.Code,
		DisplayName: p.DisplayName,
		Enabled:     p.Enabled,
		Adapter:     p.Adapter,
	}

	var dailyUsed, dailyCap int64
	for _, k := range keys {
		status.TotalUsage += k.UsageCount
		switch k.Status {
		case KeyStatusActive:
			status.ActiveKeys++
		case KeyStatusRateLimited:
			status.RateLimitedKeys++
			if k.RateLimitResetAt != nil && k.RateLimitResetAt.After(now) &&
				(status.NextResetAt == nil || k.RateLimitResetAt.Before(*status.NextResetAt)) {
				reset := *k.RateLimitResetAt
				status.NextResetAt = &reset
			}
		case KeyStatusDisabled:
			status.DisabledKeys++
		}
		if k.DailyLimit != nil && *k.DailyLimit > 0 {
			dailyUsed += k.DailyUsage
			dailyCap += *k.DailyLimit
		}
	}

	if dailyCap > 0 {
		utilization := decimal.NewFromInt(dailyUsed).Div(decimal.NewFromInt(dailyCap)).Round(4)
		status.DailyUtilization = &utilization
	}
	return status
}

// ResetDailyUsage zeroes the daily usage of every key. Lifetime usage counts are untouched.
func (s *PoolService) ResetDailyUsage(ctx context.Context) (int64, error) {
	n, err := s.keys.ResetDailyUsage(ctx, s.clock.Now())
	if err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to reset daily key usage")
	}
	log := logger.GetLogger()
	log.Info().Int64("keys", n).Msg("daily key usage reset")
	return n, nil
}
