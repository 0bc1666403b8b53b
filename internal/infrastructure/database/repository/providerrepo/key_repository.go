package providerrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	"jan-server/services/dispatch-api/internal/domain/provider"
	"jan-server/services/dispatch-api/internal/infrastructure/database"
	"jan-server/services/dispatch-api/internal/infrastructure/database/dbschema"
	"jan-server/services/dispatch-api/internal/infrastructure/database/transaction"
	"jan-server/services/dispatch-api/internal/utils/functional"
)

type KeyGormRepository struct {
	db *transaction.Database
}

var _ provider.KeyRepository = (*KeyGormRepository)(nil)

func NewKeyGormRepository(db *transaction.Database) provider.KeyRepository {
	return &KeyGormRepository{db: db}
}

func (repo *KeyGormRepository) Create(ctx context.Context, key *provider.ProviderKey) error {
	if key.Status == "" {
		key.Status = provider.KeyStatusActive
	}
	model := dbschema.NewSchemaProviderKey(key)
	if err := repo.db.GetTx(ctx).Create(model).Error; err != nil {
		return database.WrapError(ctx, err, "failed to create provider key")
	}
	key.ID = model.ID
	key.CreatedAt = model.CreatedAt
	key.UpdatedAt = model.UpdatedAt
	return nil
}

func (repo *KeyGormRepository) FindByID(ctx context.Context, id uint) (*provider.ProviderKey, error) {
	var row dbschema.ProviderKey
	err := repo.db.GetTx(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, database.WrapError(ctx, err, "failed to load provider key")
	}
	return row.EtoD(), nil
}

func (repo *KeyGormRepository) FindByFingerprint(ctx context.Context, providerID uint, fingerprint string) (*provider.ProviderKey, error) {
	var row dbschema.ProviderKey
	err := repo.db.GetTx(ctx).
		Where("provider_id = ? AND fingerprint = ?", providerID, fingerprint).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, database.WrapError(ctx, err, "failed to load provider key")
	}
	return row.EtoD(), nil
}

func (repo *KeyGormRepository) FindAll(ctx context.Context) ([]*provider.ProviderKey, error) {
	var rows []*dbschema.ProviderKey
	if err := repo.db.GetTx(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, database.WrapError(ctx, err, "failed to list provider keys")
	}
	return functional.Map(rows, func(row *dbschema.ProviderKey) *provider.ProviderKey {
		return row.EtoD()
	}), nil
}

// claimSQL waits on a key row another transaction holds (a session insert, a park, a
// last-used touch) instead of skipping it, so a locked pool never reads as empty. After
// the wait Postgres re-checks the row against the WHERE clauses; a concurrent claim may
// then take a key that is no longer the least used, which only skews usage counts.
const claimSQL = `
UPDATE dispatch_api.provider_keys
SET usage_count = usage_count + 1,
    daily_usage = daily_usage + 1,
    updated_at = @now
WHERE id = (
    SELECT id FROM dispatch_api.provider_keys
    WHERE provider_id = @provider_id
      AND status = 'active'
      %s
    ORDER BY usage_count ASC, last_used_at ASC NULLS FIRST, id ASC
    LIMIT 1
    FOR UPDATE
)
AND status = 'active'
RETURNING *`

func claimQuery(scope string) string {
	return fmt.Sprintf(claimSQL, scope)
}

const modelScopeSQL = `AND model_id = @model_id
      AND (daily_limit IS NULL OR daily_usage < daily_limit)`

// ClaimLeastUsed picks and increments in one statement so concurrent claims never
// observe the same pre-increment count.
func (repo *KeyGormRepository) ClaimLeastUsed(ctx context.Context, filter provider.KeyClaimFilter, now time.Time) (*provider.ProviderKey, error) {
	args := map[string]any{
		"now":         now,
		"provider_id": filter.ProviderID,
	}
	scope := ""
	if filter.ModelID != nil {
		scope = modelScopeSQL
		args["model_id"] = *filter.ModelID
	}

	var rows []dbschema.ProviderKey
	err := repo.db.GetTx(ctx).
		Clauses(dbresolver.Write).
		Raw(claimQuery(scope), args).
		Scan(&rows).Error
	if err != nil {
		return nil, database.WrapError(ctx, err, "failed to claim provider key")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].EtoD(), nil
}

// MarkRateLimited parks a key. An already parked key keeps the later of the two resets.
func (repo *KeyGormRepository) MarkRateLimited(ctx context.Context, id uint, resetAt time.Time, now time.Time) (bool, error) {
	result := repo.db.GetTx(ctx).
		Model(&dbschema.ProviderKey{}).
		Where("id = ? AND status <> ?", id, string(provider.KeyStatusDisabled)).
		Updates(map[string]any{
			"status": string(provider.KeyStatusRateLimited),
			"rate_limit_reset_at": gorm.Expr(
				"CASE WHEN status = ? AND rate_limit_reset_at > ? THEN rate_limit_reset_at ELSE ? END",
				string(provider.KeyStatusRateLimited), resetAt, resetAt,
			),
			"updated_at": now,
		})
	if result.Error != nil {
		return false, database.WrapError(ctx, result.Error, "failed to mark provider key rate limited")
	}
	return result.RowsAffected > 0, nil
}

func (repo *KeyGormRepository) Recover(ctx context.Context, id uint, now time.Time) (bool, error) {
	result := repo.db.GetTx(ctx).
		Model(&dbschema.ProviderKey{}).
		Where("id = ? AND status = ? AND rate_limit_reset_at <= ?", id, string(provider.KeyStatusRateLimited), now).
		Updates(map[string]any{
			"status":              string(provider.KeyStatusActive),
			"rate_limit_reset_at": nil,
			"updated_at":          now,
		})
	if result.Error != nil {
		return false, database.WrapError(ctx, result.Error, "failed to recover provider key")
	}
	return result.RowsAffected > 0, nil
}

const recoverExpiredSQL = `
UPDATE dispatch_api.provider_keys
SET status = 'active', rate_limit_reset_at = NULL, updated_at = @now
WHERE status = 'rate_limited' AND rate_limit_reset_at <= @now
RETURNING id`

func (repo *KeyGormRepository) RecoverExpired(ctx context.Context, now time.Time) ([]uint, error) {
	var ids []uint
	err := repo.db.GetTx(ctx).
		Clauses(dbresolver.Write).
		Raw(recoverExpiredSQL, map[string]any{"now": now}).
		Scan(&ids).Error
	if err != nil {
		return nil, database.WrapError(ctx, err, "failed to recover expired provider keys")
	}
	return ids, nil
}

func (repo *KeyGormRepository) TouchLastUsed(ctx context.Context, id uint, now time.Time) error {
	err := repo.db.GetTx(ctx).
		Model(&dbschema.ProviderKey{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_used_at": now, "updated_at": now}).Error
	return database.WrapError(ctx, err, "failed to update provider key last use")
}

func (repo *KeyGormRepository) ResetDailyUsage(ctx context.Context, now time.Time) (int64, error) {
	result := repo.db.GetTx(ctx).
		Model(&dbschema.ProviderKey{}).
		Where("daily_usage > 0").
		Updates(map[string]any{"daily_usage": 0, "updated_at": now})
	if result.Error != nil {
		return 0, database.WrapError(ctx, result.Error, "failed to reset daily key usage")
	}
	return result.RowsAffected, nil
}
