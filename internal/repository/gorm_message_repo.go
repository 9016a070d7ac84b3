package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/pkg/log"
)

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	if err := r.db.WithContext(ctx).Create(domain.MessageToModel(msg)).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoomID, msg.RoomID).Msg("failed to insert chat message")
		return err
	}
	return nil
}

// ListByRoom returns the newest messages first.
func (r *GormMessageRepository) ListByRoom(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	var models []domain.MessageModel
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("timestamp DESC").
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	msgs := make([]domain.ChatMessage, len(models))
	for i, m := range models {
		msgs[i] = *m.ToDomain()
	}
	return msgs, nil
}
