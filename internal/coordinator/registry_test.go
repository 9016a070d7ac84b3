package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-collab/internal/domain"
)

func newTestRegistry() (*Registry, *RoomIndex) {
	idx := NewRoomIndex()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return NewRegistry(idx, func() time.Time { return fixed }), idx
}

func TestRegistryJoinAndLeave(t *testing.T) {
	r, idx := newTestRegistry()
	r.OnConnect("h1")
	r.OnConnect("h1")
	assert.Equal(t, 1, r.Len())

	prior, err := r.OnJoin("h1", "alice", "room")
	require.NoError(t, err)
	assert.Empty(t, prior)
	assert.True(t, idx.Contains("room", "h1"))

	conn, ok := r.Get("h1")
	require.True(t, ok)
	assert.True(t, conn.InRoom())
	assert.False(t, conn.JoinedAt.IsZero())

	before, ok := r.OnLeave("h1")
	require.True(t, ok)
	assert.Equal(t, "room", before.RoomID)
	assert.Zero(t, idx.Size("room"))

	_, ok = r.OnLeave("h1")
	assert.False(t, ok, "leaving twice")

	conn, _ = r.Get("h1")
	assert.Equal(t, "alice", conn.Username)
	assert.False(t, conn.InRoom())
}

func TestRegistryRejectsBadJoins(t *testing.T) {
	r, _ := newTestRegistry()
	r.OnConnect("h1")

	_, err := r.OnJoin("h1", "", "room")
	assert.ErrorIs(t, err, domain.ErrInvalidJoin)
	_, err = r.OnJoin("h1", "alice", "")
	assert.ErrorIs(t, err, domain.ErrInvalidJoin)
	_, err = r.OnJoin("nobody", "alice", "room")
	assert.ErrorIs(t, err, domain.ErrStaleHandle)
}

func TestRegistrySameSessionNewerHandleWins(t *testing.T) {
	r, idx := newTestRegistry()
	r.OnConnect("old")
	r.OnConnect("new")
	_, err := r.OnJoin("old", "alice", "room")
	require.NoError(t, err)

	prior, err := r.OnJoin("new", "alice", "room")
	require.NoError(t, err)
	assert.Equal(t, domain.Handle("old"), prior)
	assert.Equal(t, []domain.Handle{"new"}, idx.MembersOf("room"))

	holder, ok := r.Holder("alice", "room")
	require.True(t, ok)
	assert.Equal(t, domain.Handle("new"), holder)

	// the old handle is still connected and can leave without touching the session
	assert.True(t, r.Has("old"))
	_, ok = r.OnLeave("old")
	assert.False(t, ok)
	holder, _ = r.Holder("alice", "room")
	assert.Equal(t, domain.Handle("new"), holder)
}

func TestRegistryRejoinSameSessionIsNoop(t *testing.T) {
	r, idx := newTestRegistry()
	r.OnConnect("h1")
	_, _ = r.OnJoin("h1", "alice", "room")

	prior, err := r.OnJoin("h1", "alice", "room")
	require.NoError(t, err)
	assert.Empty(t, prior)
	assert.Equal(t, 1, idx.Size("room"))
}

func TestRegistryJoinElsewhereDetachesFirst(t *testing.T) {
	r, idx := newTestRegistry()
	r.OnConnect("h1")
	_, _ = r.OnJoin("h1", "alice", "a")
	_, err := r.OnJoin("h1", "alice", "b")
	require.NoError(t, err)

	assert.Zero(t, idx.Size("a"))
	assert.Equal(t, 1, idx.Size("b"))
	_, ok := r.Holder("alice", "a")
	assert.False(t, ok)
}

func TestRegistryDisconnectForgetsHandle(t *testing.T) {
	r, idx := newTestRegistry()
	r.OnConnect("h1")
	_, _ = r.OnJoin("h1", "alice", "room")

	last, ok := r.OnDisconnect("h1")
	require.True(t, ok)
	assert.Equal(t, "room", last.RoomID)
	assert.False(t, r.Has("h1"))
	assert.Empty(t, idx.Rooms())

	_, ok = r.OnDisconnect("h1")
	assert.False(t, ok)
}

func TestReconcilerReportsEviction(t *testing.T) {
	r, _ := newTestRegistry()
	rc := NewReconciler(r)
	r.OnConnect("a")
	r.OnConnect("b")

	notice, err := rc.Reconcile("a", "alice", "room")
	require.NoError(t, err)
	assert.Nil(t, notice)

	notice, err = rc.Reconcile("b", "alice", "room")
	require.NoError(t, err)
	require.NotNil(t, notice)
	assert.Equal(t, EvictionNotice{PriorHandle: "a", NewHandle: "b", Username: "alice", RoomID: "room"}, *notice)

	_, err = rc.Reconcile("b", "", "room")
	assert.ErrorIs(t, err, domain.ErrInvalidJoin)
}
