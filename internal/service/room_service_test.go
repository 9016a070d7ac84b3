package service

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-collab/internal/domain"
)

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	svc := NewRoomService(newFakeRoomRepo(), nil, 0)

	room, err := svc.CreateRoom(ctx, &domain.CreateRoomRequest{CreatedBy: "alice"})
	require.NoError(t, err)
	_, err = ulid.Parse(room.ID)
	assert.NoError(t, err, "generated id is a ULID")
	assert.Equal(t, "Room "+room.ID[:8], room.Name)
	assert.True(t, room.IsActive)

	room, err = svc.CreateRoom(ctx, &domain.CreateRoomRequest{RoomID: "fixed", Name: "Pairing", CreatedBy: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "Pairing", room.Name)
	_, err = svc.CreateRoom(ctx, &domain.CreateRoomRequest{RoomID: "fixed", CreatedBy: "bob"})
	assert.ErrorIs(t, err, ErrRoomExists)
}

func TestEnsureRoomReportsCreation(t *testing.T) {
	ctx := context.Background()
	svc := NewRoomService(newFakeRoomRepo(), nil, 0)

	created, err := svc.EnsureRoom(ctx, "r", "alice")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureRoom(ctx, "r", "bob")
	require.NoError(t, err)
	assert.False(t, created)

	room, err := svc.GetRoom(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "alice", room.CreatedBy)
	assert.Equal(t, "Room r", room.Name)
	assert.True(t, room.IsActive)
}

func TestListRoomsByCreatorNewestActivityFirst(t *testing.T) {
	ctx := context.Background()
	svc := NewRoomService(newFakeRoomRepo(), nil, 0)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.(*roomServiceImpl).now = func() time.Time { return clock }

	for _, id := range []string{"first", "second"} {
		_, err := svc.CreateRoom(ctx, &domain.CreateRoomRequest{RoomID: id, CreatedBy: "alice"})
		require.NoError(t, err)
		clock = clock.Add(time.Minute)
	}
	_, err := svc.CreateRoom(ctx, &domain.CreateRoomRequest{RoomID: "elsewhere", CreatedBy: "bob"})
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	require.NoError(t, svc.TouchRoom(ctx, "first"))

	rooms, err := svc.ListRoomsByCreator(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "first", rooms[0].ID)
	assert.Equal(t, "second", rooms[1].ID)

	rooms, err = svc.ListRoomsByCreator(ctx, "carol")
	require.NoError(t, err)
	assert.NotNil(t, rooms)
	assert.Empty(t, rooms)
}

func TestGetRoomUsesCache(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRoomRepo()
	c := newFakeRoomCache()
	svc := NewRoomService(repo, c, 0)
	_, _ = svc.EnsureRoom(ctx, "r", "alice")

	for i := 0; i < 3; i++ {
		room, err := svc.GetRoom(ctx, "r")
		require.NoError(t, err)
		assert.Equal(t, "r", room.ID)
	}
	assert.Equal(t, 1, repo.lookups())
	assert.True(t, c.has("room:r"))

	require.NoError(t, svc.TouchRoom(ctx, "r"))
	assert.False(t, c.has("room:r"))

	_, err := svc.GetRoom(ctx, "nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, svc.TouchRoom(ctx, "nope"), ErrRoomNotFound)
}

func TestListRoomsPaginates(t *testing.T) {
	ctx := context.Background()
	svc := NewRoomService(newFakeRoomRepo(), nil, 0)
	for _, id := range []string{"a", "b", "c"} {
		_, err := svc.EnsureRoom(ctx, id, "u")
		require.NoError(t, err)
	}

	res, err := svc.ListRooms(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.TotalPages)
	require.Len(t, res.Rooms, 1)
	assert.Equal(t, "c", res.Rooms[0].ID)

	res, err = svc.ListRooms(ctx, 0, 500)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 20, res.PageSize)
}

func TestMessageService(t *testing.T) {
	ctx := context.Background()
	repo := &fakeMessageRepo{}
	svc := NewMessageService(repo)

	msg := &domain.ChatMessage{RoomID: "r", Username: "alice", Message: "hi"}
	require.NoError(t, svc.SaveMessage(ctx, msg))
	assert.NotEmpty(t, msg.ID)

	_, err := svc.GetHistory(ctx, "r", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultHistoryLimit, repo.lastLimit)

	_, _ = svc.GetHistory(ctx, "r", 10000)
	assert.Equal(t, MaxHistoryLimit, repo.lastLimit)

	_, _ = svc.GetHistory(ctx, "r", 7)
	assert.Equal(t, 7, repo.lastLimit)
}
