package service

import (
	"context"

	"github.com/weiawesome/wes-io-collab/internal/domain"
)

// RoomService manages persisted rooms.
type RoomService interface {
	CreateRoom(ctx context.Context, req *domain.CreateRoomRequest) (*domain.Room, error)
	EnsureRoom(ctx context.Context, roomID, createdBy string) (bool, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	ListRooms(ctx context.Context, page, pageSize int) (*domain.ListRoomsResponse, error)
	ListRoomsByCreator(ctx context.Context, username string) ([]domain.Room, error)
	TouchRoom(ctx context.Context, roomID string) error
}

// MessageService stores and serves chat history.
type MessageService interface {
	SaveMessage(ctx context.Context, msg *domain.ChatMessage) error
	GetHistory(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error)
}

// AnalyticsService serves durable analytics written by the persister.
type AnalyticsService interface {
	GetHistory(ctx context.Context, roomID string, limit int) ([]domain.AnalyticsEvent, error)
	GetSnapshot(ctx context.Context, roomID string) (*domain.RoomMetrics, error)
}

// CanvasService stores versioned whiteboard snapshots.
type CanvasService interface {
	SaveCanvas(ctx context.Context, roomID string, state []byte) (string, error)
	GetLatest(ctx context.Context, roomID string) (*domain.CanvasSnapshot, error)
}
