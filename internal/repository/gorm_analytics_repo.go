package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/pkg/database"
	"github.com/weiawesome/wes-io-collab/pkg/log"
)

// ErrSnapshotNotFound is returned when a room has no stored metrics.
var ErrSnapshotNotFound = errors.New("analytics snapshot not found")

type GormAnalyticsRepository struct {
	db *gorm.DB
}

func NewGormAnalyticsRepository(db *gorm.DB) *GormAnalyticsRepository {
	return &GormAnalyticsRepository{db: db}
}

func (r *GormAnalyticsRepository) CreateEvent(ctx context.Context, event *domain.AnalyticsEvent) error {
	model := &domain.AnalyticsEventModel{
		ID:         event.ID,
		RoomID:     event.RoomID,
		Username:   event.Username,
		ActionType: string(event.ActionType),
		Details:    database.JSONMap(event.Details),
		OccurredAt: event.OccurredAt,
	}
	// Redelivered events carry the same id.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(model).Error
}

// ListEvents returns the newest events first.
func (r *GormAnalyticsRepository) ListEvents(ctx context.Context, roomID string, limit int) ([]domain.AnalyticsEvent, error) {
	var models []domain.AnalyticsEventModel
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("occurred_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	events := make([]domain.AnalyticsEvent, len(models))
	for i, m := range models {
		events[i] = *m.ToDomain()
	}
	return events, nil
}

func (r *GormAnalyticsRepository) UpsertSnapshot(ctx context.Context, m *domain.RoomMetrics) error {
	model := &domain.AnalyticsSnapshotModel{
		RoomID:              m.RoomID,
		ActiveUsers:         m.ActiveUsers,
		ActionsPerMinute:    m.ActionsPerMinute,
		CollaborationEvents: m.CollaborationEvents,
		PeakActivityTime:    m.PeakActivityTime,
		AvgSessionTime:      m.AvgSessionTime,
		TotalActions:        m.TotalActions,
		LinesOfCode:         m.LinesOfCode,
		Compilations:        m.Compilations,
		CapturedAt:          m.ComputedAt,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "room_id"}}, UpdateAll: true}).
		Create(model).Error
}

func (r *GormAnalyticsRepository) GetSnapshot(ctx context.Context, roomID string) (*domain.RoomMetrics, error) {
	var model domain.AnalyticsSnapshotModel
	if err := r.db.WithContext(ctx).First(&model, "room_id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// DeleteByRoom removes the room's events and snapshot in one transaction.
func (r *GormAnalyticsRepository) DeleteByRoom(ctx context.Context, roomID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&domain.AnalyticsEventModel{}).Error; err != nil {
			return err
		}
		return tx.Where("room_id = ?", roomID).Delete(&domain.AnalyticsSnapshotModel{}).Error
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to delete analytics")
	}
	return err
}
