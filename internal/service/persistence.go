package service

import (
	"context"

	"github.com/weiawesome/wes-io-collab/internal/domain"
)

// Persistence bundles the services the coordinator writes through.
type Persistence struct {
	Rooms    RoomService
	Messages MessageService
	Canvas   CanvasService
}

func NewPersistence(rooms RoomService, messages MessageService, canvas CanvasService) *Persistence {
	return &Persistence{Rooms: rooms, Messages: messages, Canvas: canvas}
}

func (p *Persistence) EnsureRoom(ctx context.Context, roomID, createdBy string) (bool, error) {
	return p.Rooms.EnsureRoom(ctx, roomID, createdBy)
}

func (p *Persistence) TouchRoom(ctx context.Context, roomID string) error {
	return p.Rooms.TouchRoom(ctx, roomID)
}

func (p *Persistence) SaveMessage(ctx context.Context, msg *domain.ChatMessage) error {
	return p.Messages.SaveMessage(ctx, msg)
}

func (p *Persistence) SaveCanvas(ctx context.Context, roomID string, state []byte) (string, error) {
	return p.Canvas.SaveCanvas(ctx, roomID, state)
}
