package chatrepo

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"jan-server/services/dispatch-api/internal/domain/chat"
	"jan-server/services/dispatch-api/internal/infrastructure/database"
	"jan-server/services/dispatch-api/internal/infrastructure/database/dbschema"
	"jan-server/services/dispatch-api/internal/infrastructure/database/transaction"
	"jan-server/services/dispatch-api/internal/utils/functional"
)

type SessionGormRepository struct {
	db *transaction.Database
}

var _ chat.SessionRepository = (*SessionGormRepository)(nil)

func NewSessionGormRepository(db *transaction.Database) chat.SessionRepository {
	return &SessionGormRepository{db: db}
}

func (repo *SessionGormRepository) Create(ctx context.Context, s *chat.Session) error {
	model := dbschema.NewSchemaChatSession(s)
	if err := repo.db.GetTx(ctx).Create(model).Error; err != nil {
		return database.WrapError(ctx, err, "failed to create chat session")
	}
	s.ID = model.ID
	s.CreatedAt = model.CreatedAt
	s.UpdatedAt = model.UpdatedAt
	return nil
}

func (repo *SessionGormRepository) FindByPublicID(ctx context.Context, publicID string) (*chat.Session, error) {
	var row dbschema.ChatSession
	err := repo.db.GetTx(ctx).Where("public_id = ?", publicID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, database.WrapError(ctx, err, "failed to load chat session")
	}
	return row.EtoD(), nil
}

func (repo *SessionGormRepository) MarkPending(ctx context.Context, id uint, now time.Time) (bool, error) {
	return repo.transition(ctx, id, chat.SessionStatusActive, chat.SessionStatusPendingRateLimit, now)
}

func (repo *SessionGormRepository) Reactivate(ctx context.Context, id uint, now time.Time) (bool, error) {
	return repo.transition(ctx, id, chat.SessionStatusPendingRateLimit, chat.SessionStatusActive, now)
}

func (repo *SessionGormRepository) transition(ctx context.Context, id uint, from, to chat.SessionStatus, now time.Time) (bool, error) {
	result := repo.db.GetTx(ctx).
		Model(&dbschema.ChatSession{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]any{"status": string(to), "updated_at": now})
	if result.Error != nil {
		return false, database.WrapError(ctx, result.Error, "failed to update chat session status")
	}
	return result.RowsAffected > 0, nil
}

const reactivateForKeysSQL = `
UPDATE dispatch_api.chat_sessions
SET status = 'active', updated_at = @now
WHERE status = 'pending_rate_limit'
  AND (key_id = ANY(@ids)
       OR key_id IN (SELECT id FROM dispatch_api.provider_keys WHERE status = 'active'))`

func (repo *SessionGormRepository) ReactivateForKeys(ctx context.Context, keyIDs []uint, now time.Time) (int64, error) {
	ids := pq.Int64Array(functional.Map(keyIDs, func(id uint) int64 { return int64(id) }))
	result := repo.db.GetTx(ctx).Exec(reactivateForKeysSQL, map[string]any{"now": now, "ids": ids})
	if result.Error != nil {
		return 0, database.WrapError(ctx, result.Error, "failed to reactivate pending chat sessions")
	}
	return result.RowsAffected, nil
}
