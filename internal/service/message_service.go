package service

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/internal/repository"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

type messageServiceImpl struct {
	repo repository.MessageRepository
}

func NewMessageService(repo repository.MessageRepository) MessageService {
	return &messageServiceImpl{repo: repo}
}

// SaveMessage assigns a ULID when the message has no id yet.
func (s *messageServiceImpl) SaveMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func (s *messageServiceImpl) GetHistory(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	return s.repo.ListByRoom(ctx, roomID, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
