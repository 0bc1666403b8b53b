package providerrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jan-server/services/dispatch-api/internal/domain/provider"
	"jan-server/services/dispatch-api/internal/infrastructure/database"
	"jan-server/services/dispatch-api/internal/infrastructure/database/dbschema"
	"jan-server/services/dispatch-api/internal/infrastructure/database/transaction"
	"jan-server/services/dispatch-api/internal/utils/functional"
)

type ProviderGormRepository struct {
	db *transaction.Database
}

var _ provider.ProviderRepository = (*ProviderGormRepository)(nil)

func NewProviderGormRepository(db *transaction.Database) provider.ProviderRepository {
	return &ProviderGormRepository{db: db}
}

// Upsert inserts a provider or updates the row with the same code.
func (repo *ProviderGormRepository) Upsert(ctx context.Context, p *provider.Provider) error {
	model := dbschema.NewSchemaProvider(p)
	err := repo.db.GetTx(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "enabled", "adapter", "endpoint", "default_model", "config", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return database.WrapError(ctx, err, "failed to upsert provider")
	}

	// Reload to pick up the id and created_at of a pre-existing row.
	var stored dbschema.Provider
	if err := repo.db.GetTx(ctx).Where("code = ?", p.Code).Take(&stored).Error; err != nil {
		return database.WrapError(ctx, err, "failed to reload provider")
	}
	p.ID = stored.ID
	p.CreatedAt = stored.CreatedAt
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

func (repo *ProviderGormRepository) FindByID(ctx context.Context, id uint) (*provider.Provider, error) {
	return repo.findOne(ctx, "id = ?", id)
}

func (repo *ProviderGormRepository) FindByCode(ctx context.Context, code string) (*provider.Provider, error) {
	return repo.findOne(ctx, "code = ?", code)
}

func (repo *ProviderGormRepository) findOne(ctx context.Context, query string, arg any) (*provider.Provider, error) {
	var row dbschema.Provider
	err := repo.db.GetTx(ctx).Where(query, arg).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, database.WrapError(ctx, err, "failed to load provider")
	}
	return row.EtoD(), nil
}

func (repo *ProviderGormRepository) FindAll(ctx context.Context) ([]*provider.Provider, error) {
	var rows []*dbschema.Provider
	if err := repo.db.GetTx(ctx).Order("code ASC").Find(&rows).Error; err != nil {
		return nil, database.WrapError(ctx, err, "failed to list providers")
	}
	return functional.Map(rows, func(row *dbschema.Provider) *provider.Provider {
		return row.EtoD()
	}), nil
}
