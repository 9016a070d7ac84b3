package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-collab/internal/cache"
	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/internal/repository"
	"github.com/weiawesome/wes-io-collab/pkg/log"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)

type roomServiceImpl struct {
	repo     repository.RoomRepository
	cache    cache.RoomCache
	cacheTTL time.Duration
	sf       singleflight.Group
	now      func() time.Time
}

// NewRoomService builds a RoomService. roomCache may be nil.
func NewRoomService(repo repository.RoomRepository, roomCache cache.RoomCache, cacheTTL time.Duration) RoomService {
	return &roomServiceImpl{
		repo:     repo,
		cache:    roomCache,
		cacheTTL: cacheTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *roomServiceImpl) CreateRoom(ctx context.Context, req *domain.CreateRoomRequest) (*domain.Room, error) {
	roomID := req.RoomID
	if roomID == "" {
		roomID = ulid.Make().String()
	}

	name := req.Name
	if name == "" {
		name = domain.DefaultRoomName(roomID)
	}

	now := s.now()
	room := &domain.Room{
		ID:           roomID,
		Name:         name,
		CreatedBy:    req.CreatedBy,
		IsActive:     true,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	if err := s.repo.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrRoomExists) {
			return nil, ErrRoomExists
		}
		return nil, err
	}
	return room, nil
}

// EnsureRoom creates the room on first join and reports whether it was new.
func (s *roomServiceImpl) EnsureRoom(ctx context.Context, roomID, createdBy string) (bool, error) {
	now := s.now()
	created, err := s.repo.Ensure(ctx, &domain.Room{
		ID:           roomID,
		Name:         domain.DefaultRoomName(roomID),
		CreatedBy:    createdBy,
		IsActive:     true,
		CreatedAt:    now,
		LastActiveAt: now,
	})
	if err != nil {
		return false, err
	}
	if created {
		l := log.Ctx(ctx)
		l.Info().Str(log.FieldRoomID, roomID).Str(log.FieldUsername, createdBy).Msg("room created on first join")
	}
	return created, nil
}

func (s *roomServiceImpl) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	if s.cache == nil {
		return s.load(ctx, roomID)
	}

	key := s.cache.BuildKeyByID(roomID)
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		return s.fetchWithCache(ctx, roomID, key)
	})
	if err != nil {
		return nil, err
	}

	room, ok := result.(*domain.Room)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	copied := *room
	return &copied, nil
}

func (s *roomServiceImpl) fetchWithCache(ctx context.Context, roomID, key string) (*domain.Room, error) {
	cached, err := s.cache.Get(ctx, key)
	if err == nil {
		return &cached.Room, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache get error")
	}

	room, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, &cache.RoomCacheResult{Room: *room}, s.cacheTTL); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache set error")
	}
	return room, nil
}

func (s *roomServiceImpl) load(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

func (s *roomServiceImpl) ListRooms(ctx context.Context, page, pageSize int) (*domain.ListRoomsResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	rooms, total, err := s.repo.List(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}

	return &domain.ListRoomsResponse{
		Rooms:      rooms,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

func (s *roomServiceImpl) ListRoomsByCreator(ctx context.Context, username string) ([]domain.Room, error) {
	rooms, err := s.repo.ListByCreator(ctx, username)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	return rooms, nil
}

// TouchRoom records activity and drops the cached copy.
func (s *roomServiceImpl) TouchRoom(ctx context.Context, roomID string) error {
	if err := s.repo.Touch(ctx, roomID, s.now()); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, s.cache.BuildKeyByID(roomID)); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("cache delete error")
		}
	}
	return nil
}
