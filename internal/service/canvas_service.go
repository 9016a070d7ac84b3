package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/pkg/log"
	"github.com/weiawesome/wes-io-collab/pkg/storage"
)

var (
	ErrCanvasNotFound = errors.New("no canvas saved for room")
	ErrInvalidRoomID  = errors.New("invalid room id")
)

const canvasPrefix = "canvas"

type canvasServiceImpl struct {
	store        storage.Storage
	keepVersions int
}

// NewCanvasService keeps at most keepVersions snapshots per room; 0 keeps all.
func NewCanvasService(store storage.Storage, keepVersions int) CanvasService {
	return &canvasServiceImpl{store: store, keepVersions: keepVersions}
}

func roomPrefix(roomID string) (string, error) {
	if roomID == "" || strings.ContainsAny(roomID, `/\`) || roomID == "." || roomID == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidRoomID, roomID)
	}
	return canvasPrefix + "/" + roomID + "/", nil
}

// SaveCanvas writes a new version and returns its key.
func (s *canvasServiceImpl) SaveCanvas(ctx context.Context, roomID string, state []byte) (string, error) {
	prefix, err := roomPrefix(roomID)
	if err != nil {
		return "", err
	}

	key := prefix + ulid.Make().String() + ".json"
	if err := s.store.Write(ctx, key, bytes.NewReader(state), int64(len(state)), "application/json"); err != nil {
		return "", fmt.Errorf("failed to write canvas: %w", err)
	}

	if s.keepVersions > 0 {
		s.prune(ctx, prefix)
	}
	return key, nil
}

func (s *canvasServiceImpl) prune(ctx context.Context, prefix string) {
	objects, err := s.store.List(ctx, prefix)
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("prefix", prefix).Msg("failed to list canvas versions")
		return
	}
	for i := 0; i < len(objects)-s.keepVersions; i++ {
		if err := s.store.Delete(ctx, objects[i].Key); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str("key", objects[i].Key).Msg("failed to prune canvas version")
		}
	}
}

// GetLatest returns the newest snapshot. Keys sort by ULID, so the last one wins.
func (s *canvasServiceImpl) GetLatest(ctx context.Context, roomID string) (*domain.CanvasSnapshot, error) {
	prefix, err := roomPrefix(roomID)
	if err != nil {
		return nil, err
	}

	objects, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list canvas versions: %w", err)
	}
	if len(objects) == 0 {
		return nil, ErrCanvasNotFound
	}
	latest := objects[len(objects)-1]

	r, err := s.store.Read(ctx, latest.Key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCanvasNotFound
		}
		return nil, err
	}
	defer r.Close()

	state, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read canvas: %w", err)
	}

	snap := &domain.CanvasSnapshot{RoomID: roomID, Key: latest.Key, SavedAt: latest.LastModified, State: state}
	if id, err := ulid.Parse(strings.TrimSuffix(path.Base(latest.Key), ".json")); err == nil {
		snap.SavedAt = ulid.Time(id.Time()).UTC()
	}
	return snap, nil
}
