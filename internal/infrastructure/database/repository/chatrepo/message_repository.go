package chatrepo

import (
	"context"

	"jan-server/services/dispatch-api/internal/domain/chat"
	"jan-server/services/dispatch-api/internal/infrastructure/database"
	"jan-server/services/dispatch-api/internal/infrastructure/database/dbschema"
	"jan-server/services/dispatch-api/internal/infrastructure/database/transaction"
	"jan-server/services/dispatch-api/internal/utils/functional"
)

type MessageGormRepository struct {
	db *transaction.Database
}

var _ chat.MessageRepository = (*MessageGormRepository)(nil)

func NewMessageGormRepository(db *transaction.Database) chat.MessageRepository {
	return &MessageGormRepository{db: db}
}

func (repo *MessageGormRepository) Append(ctx context.Context, m *chat.Message) error {
	model := dbschema.NewSchemaMessage(m)
	if err := repo.db.GetTx(ctx).Create(model).Error; err != nil {
		return database.WrapError(ctx, err, "failed to append message")
	}
	m.ID = model.ID
	m.CreatedAt = model.CreatedAt
	return nil
}

// ListBySession returns a session's history oldest first.
func (repo *MessageGormRepository) ListBySession(ctx context.Context, sessionID uint) ([]*chat.Message, error) {
	var rows []*dbschema.Message
	err := repo.db.GetTx(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, database.WrapError(ctx, err, "failed to list messages")
	}
	return functional.Map(rows, func(row *dbschema.Message) *chat.Message {
		return row.EtoD()
	}), nil
}
