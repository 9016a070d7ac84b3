package repository

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-collab/internal/domain"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)

// RoomRepository persists rooms.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	// Ensure inserts the room unless it exists and reports whether it did.
	Ensure(ctx context.Context, room *domain.Room) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	List(ctx context.Context, page, pageSize int) ([]domain.Room, int, error)
	// ListByCreator returns the active rooms created by username, most recently active first.
	ListByCreator(ctx context.Context, username string) ([]domain.Room, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

// MessageRepository persists chat history.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error
	ListByRoom(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error)
}

// AnalyticsRepository persists action entries and the latest metrics per room.
type AnalyticsRepository interface {
	CreateEvent(ctx context.Context, event *domain.AnalyticsEvent) error
	ListEvents(ctx context.Context, roomID string, limit int) ([]domain.AnalyticsEvent, error)
	UpsertSnapshot(ctx context.Context, metrics *domain.RoomMetrics) error
	GetSnapshot(ctx context.Context, roomID string) (*domain.RoomMetrics, error)
	DeleteByRoom(ctx context.Context, roomID string) error
}
