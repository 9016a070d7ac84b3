package domain

import (
	"time"

	"github.com/google/uuid"
)

// Handle identifies one live transport connection for its whole lifetime.
type Handle string

// NewHandle returns a fresh random handle.
func NewHandle() Handle {
	return Handle(uuid.New().String())
}

func (h Handle) String() string {
	return string(h)
}

// Connection is the registry's view of one transport link. Username and
// RoomID are empty until the connection joins a room.
type Connection struct {
	Handle      Handle    `json:"handle"`
	Username    string    `json:"username,omitempty"`
	RoomID      string    `json:"room_id,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
	JoinedAt    time.Time `json:"joined_at,omitempty"`
}

// InRoom reports whether the connection is currently bound to a room.
func (c *Connection) InRoom() bool {
	return c.RoomID != ""
}

// Session returns the (username, room) identity the connection occupies.
func (c *Connection) Session() SessionKey {
	return SessionKey{Username: c.Username, RoomID: c.RoomID}
}

// SessionKey is the deduplication identity: one live connection per user per room.
type SessionKey struct {
	Username string
	RoomID   string
}

// Member is a presence entry sent to clients.
type Member struct {
	Handle   Handle `json:"handle"`
	Username string `json:"username"`
}
