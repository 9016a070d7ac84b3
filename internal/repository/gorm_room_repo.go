package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/pkg/log"
)

// GormRoomRepository implements RoomRepository using GORM.
type GormRoomRepository struct {
	db *gorm.DB
}

func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

// Create inserts a new room and fails with ErrRoomExists on a duplicate id.
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	created, err := r.insert(ctx, room)
	if err != nil {
		return err
	}
	if !created {
		return ErrRoomExists
	}
	return nil
}

func (r *GormRoomRepository) Ensure(ctx context.Context, room *domain.Room) (bool, error) {
	return r.insert(ctx, room)
}

func (r *GormRoomRepository) insert(ctx context.Context, room *domain.Room) (bool, error) {
	l := log.Ctx(ctx)

	if room.LastActiveAt.IsZero() {
		room.LastActiveAt = time.Now().UTC()
	}
	model := domain.RoomToModel(room)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(model)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, room.ID).Msg("failed to create room in db")
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	room.CreatedAt = model.CreatedAt
	l.Debug().Str(log.FieldRoomID, room.ID).Msg("room created in db")
	return true, nil
}

func (r *GormRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	l := log.Ctx(ctx)

	var model domain.RoomModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldRoomID, id).Msg("failed to get room by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// List returns rooms ordered by most recent activity.
func (r *GormRoomRepository) List(ctx context.Context, page, pageSize int) ([]domain.Room, int, error) {
	l := log.Ctx(ctx)

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := r.db.WithContext(ctx).Model(&domain.RoomModel{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		l.Error().Err(err).Msg("failed to count rooms")
		return nil, 0, err
	}

	var models []domain.RoomModel
	if err := query.Order("last_active_at DESC").Offset(offset).Limit(pageSize).Find(&models).Error; err != nil {
		l.Error().Err(err).Msg("failed to list rooms from db")
		return nil, 0, err
	}

	rooms := make([]domain.Room, len(models))
	for i, model := range models {
		rooms[i] = *model.ToDomain()
	}
	return rooms, int(total), nil
}

func (r *GormRoomRepository) ListByCreator(ctx context.Context, username string) ([]domain.Room, error) {
	l := log.Ctx(ctx)

	var models []domain.RoomModel
	err := r.db.WithContext(ctx).
		Where("created_by = ? AND is_active = ?", username, true).
		Order("last_active_at DESC").
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Str(log.FieldUsername, username).Msg("failed to list rooms by creator")
		return nil, err
	}

	rooms := make([]domain.Room, len(models))
	for i, model := range models {
		rooms[i] = *model.ToDomain()
	}
	return rooms, nil
}

func (r *GormRoomRepository) Touch(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.RoomModel{}).
		Where("id = ?", id).
		Update("last_active_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}
