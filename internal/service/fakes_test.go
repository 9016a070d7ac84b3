package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-collab/internal/cache"
	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/internal/repository"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
)

type fakeRoomRepo struct {
	mu      sync.Mutex
	rooms   map[string]domain.Room
	getByID int
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[string]domain.Room)}
}

func (r *fakeRoomRepo) Create(ctx context.Context, room *domain.Room) error {
	created, _ := r.Ensure(ctx, room)
	if !created {
		return repository.ErrRoomExists
	}
	return nil
}

func (r *fakeRoomRepo) Ensure(ctx context.Context, room *domain.Room) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room.ID]; ok {
		return false, nil
	}
	r.rooms[room.ID] = *room
	return true, nil
}

func (r *fakeRoomRepo) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getByID++
	room, ok := r.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return &room, nil
}

func (r *fakeRoomRepo) List(ctx context.Context, page, pageSize int) ([]domain.Room, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.Room
	for _, room := range r.rooms {
		all = append(all, room)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (r *fakeRoomRepo) ListByCreator(ctx context.Context, username string) ([]domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Room
	for _, room := range r.rooms {
		if room.CreatedBy == username && room.IsActive {
			out = append(out, room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActiveAt.After(out[j].LastActiveAt) })
	return out, nil
}

func (r *fakeRoomRepo) Touch(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return repository.ErrRoomNotFound
	}
	room.LastActiveAt = at
	r.rooms[id] = room
	return nil
}

func (r *fakeRoomRepo) lookups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getByID
}

type fakeRoomCache struct {
	mu      sync.Mutex
	entries map[string]cache.RoomCacheResult
}

func newFakeRoomCache() *fakeRoomCache {
	return &fakeRoomCache{entries: make(map[string]cache.RoomCacheResult)}
}

func (c *fakeRoomCache) Get(ctx context.Context, key string) (*cache.RoomCacheResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return &res, nil
}

func (c *fakeRoomCache) Set(ctx context.Context, key string, result *cache.RoomCacheResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = *result
	return nil
}

func (c *fakeRoomCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *fakeRoomCache) BuildKeyByID(roomID string) string { return "room:" + roomID }
func (c *fakeRoomCache) Close() error                     { return nil }

func (c *fakeRoomCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

type fakeMessageRepo struct {
	msgs      []domain.ChatMessage
	lastLimit int
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *domain.ChatMessage) error {
	r.msgs = append(r.msgs, *msg)
	return nil
}

func (r *fakeMessageRepo) ListByRoom(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	r.lastLimit = limit
	return r.msgs, nil
}

type fakeAnalyticsRepo struct {
	mu        sync.Mutex
	events    map[string]domain.AnalyticsEvent
	snapshots map[string]domain.RoomMetrics
	deleted   []string
}

func newFakeAnalyticsRepo() *fakeAnalyticsRepo {
	return &fakeAnalyticsRepo{events: make(map[string]domain.AnalyticsEvent), snapshots: make(map[string]domain.RoomMetrics)}
}

func (r *fakeAnalyticsRepo) CreateEvent(ctx context.Context, ev *domain.AnalyticsEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[ev.ID] = *ev
	return nil
}

func (r *fakeAnalyticsRepo) ListEvents(ctx context.Context, roomID string, limit int) ([]domain.AnalyticsEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AnalyticsEvent
	for _, ev := range r.events {
		if ev.RoomID == roomID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *fakeAnalyticsRepo) UpsertSnapshot(ctx context.Context, m *domain.RoomMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[m.RoomID] = *m
	return nil
}

func (r *fakeAnalyticsRepo) GetSnapshot(ctx context.Context, roomID string) (*domain.RoomMetrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.snapshots[roomID]
	if !ok {
		return nil, repository.ErrSnapshotNotFound
	}
	return &m, nil
}

func (r *fakeAnalyticsRepo) DeleteByRoom(ctx context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ev := range r.events {
		if ev.RoomID == roomID {
			delete(r.events, id)
		}
	}
	delete(r.snapshots, roomID)
	r.deleted = append(r.deleted, roomID)
	return nil
}

func (r *fakeAnalyticsRepo) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// fakeBus delivers published events to a single pattern subscriber.
type fakeBus struct {
	mu        sync.Mutex
	published []string
	ch        chan *pubsub.Event
}

func newFakeBus() *fakeBus {
	return &fakeBus{ch: make(chan *pubsub.Event, 16)}
}

func (b *fakeBus) Publish(ctx context.Context, channel string, ev *pubsub.Event) error {
	b.mu.Lock()
	b.published = append(b.published, channel)
	b.mu.Unlock()
	b.ch <- ev
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan *pubsub.Event, error) {
	return b.ch, nil
}

func (b *fakeBus) SubscribePattern(ctx context.Context, pattern string) (<-chan *pubsub.Event, error) {
	return b.ch, nil
}

func (b *fakeBus) Unsubscribe(ctx context.Context, channel string) error { return nil }
