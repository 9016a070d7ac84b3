package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/pkg/database"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     ":memory:",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	require.NoError(t, database.AutoMigrate(db, domain.Models()...))
	return db
}

func TestRoomRepositoryCreateAndEnsure(t *testing.T) {
	ctx := context.Background()
	repo := NewGormRoomRepository(openTestDB(t))

	require.NoError(t, repo.Create(ctx, &domain.Room{ID: "r1", CreatedBy: "alice"}))
	assert.ErrorIs(t, repo.Create(ctx, &domain.Room{ID: "r1", CreatedBy: "bob"}), ErrRoomExists)

	created, err := repo.Ensure(ctx, &domain.Room{ID: "r1", CreatedBy: "carol"})
	require.NoError(t, err)
	assert.False(t, created)

	created, err = repo.Ensure(ctx, &domain.Room{ID: "r2", CreatedBy: "carol"})
	require.NoError(t, err)
	assert.True(t, created)

	room, err := repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "alice", room.CreatedBy)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomRepositoryListAndTouch(t *testing.T) {
	ctx := context.Background()
	repo := NewGormRoomRepository(openTestDB(t))
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, &domain.Room{ID: id, CreatedBy: "u", LastActiveAt: t0.Add(time.Duration(i) * time.Hour)}))
	}
	require.NoError(t, repo.Touch(ctx, "a", t0.Add(10*time.Hour)))
	assert.ErrorIs(t, repo.Touch(ctx, "zzz", t0), ErrRoomNotFound)

	rooms, total, err := repo.List(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rooms, 2)
	assert.Equal(t, "a", rooms[0].ID)
	assert.Equal(t, "c", rooms[1].ID)

	rooms, _, err = repo.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "b", rooms[0].ID)
}

func TestRoomRepositoryListByCreator(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewGormRoomRepository(db)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := []domain.Room{
		{ID: "old", Name: "Old", CreatedBy: "alice", IsActive: true, LastActiveAt: t0},
		{ID: "new", Name: "New", CreatedBy: "alice", IsActive: true, LastActiveAt: t0.Add(time.Hour)},
		{ID: "closed", Name: "Closed", CreatedBy: "alice", IsActive: true, LastActiveAt: t0.Add(2 * time.Hour)},
		{ID: "bobs", Name: "Bobs", CreatedBy: "bob", IsActive: true, LastActiveAt: t0.Add(3 * time.Hour)},
	}
	for i := range seed {
		require.NoError(t, repo.Create(ctx, &seed[i]))
	}
	require.NoError(t, db.Model(&domain.RoomModel{}).Where("id = ?", "closed").Update("is_active", false).Error)

	rooms, err := repo.ListByCreator(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "new", rooms[0].ID)
	assert.Equal(t, "New", rooms[0].Name)
	assert.True(t, rooms[0].IsActive)
	assert.Equal(t, "old", rooms[1].ID)

	rooms, err = repo.ListByCreator(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestMessageRepositoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewGormMessageRepository(openTestDB(t))
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	ids := []string{"01HZZZZZZZZZZZZZZZZZZZZZZ1", "01HZZZZZZZZZZZZZZZZZZZZZZ2", "01HZZZZZZZZZZZZZZZZZZZZZZ3"}
	for i, id := range ids {
		require.NoError(t, repo.Create(ctx, &domain.ChatMessage{
			ID: id, RoomID: "r", Username: "alice", Message: "m", Timestamp: t0.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, &domain.ChatMessage{ID: "01HZZZZZZZZZZZZZZZZZZZZZZ9", RoomID: "other", Username: "x", Message: "m", Timestamp: t0}))

	msgs, err := repo.ListByRoom(ctx, "r", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, ids[2], msgs[0].ID)
	assert.Equal(t, ids[1], msgs[1].ID)
}

func TestAnalyticsRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormAnalyticsRepository(openTestDB(t))
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	ev := &domain.AnalyticsEvent{
		ID: "01HAAAAAAAAAAAAAAAAAAAAAA1", RoomID: "r", Username: "alice",
		ActionType: domain.ActionCodeChange, Details: map[string]interface{}{"lines_changed": float64(3)}, OccurredAt: t0,
	}
	require.NoError(t, repo.CreateEvent(ctx, ev))
	require.NoError(t, repo.CreateEvent(ctx, ev), "redelivery is ignored")

	events, err := repo.ListEvents(ctx, "r", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.ActionCodeChange, events[0].ActionType)
	assert.Equal(t, float64(3), events[0].Details["lines_changed"])

	_, err = repo.GetSnapshot(ctx, "r")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	m := &domain.RoomMetrics{RoomID: "r", ActiveUsers: 2, TotalActions: 5, PeakActivityTime: "12:00", ComputedAt: t0}
	require.NoError(t, repo.UpsertSnapshot(ctx, m))
	m.TotalActions = 8
	require.NoError(t, repo.UpsertSnapshot(ctx, m))

	got, err := repo.GetSnapshot(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, 8, got.TotalActions)
	assert.Equal(t, "12:00", got.PeakActivityTime)

	require.NoError(t, repo.DeleteByRoom(ctx, "r"))
	events, err = repo.ListEvents(ctx, "r", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
	_, err = repo.GetSnapshot(ctx, "r")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}
