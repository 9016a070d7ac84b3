package domain

import "time"

// Room is a persisted collaboration room.
type Room struct {
	ID           string    `json:"room_id"`
	Name         string    `json:"name"`
	CreatedBy    string    `json:"created_by"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// DefaultRoomName is the name a room gets when none is supplied.
func DefaultRoomName(roomID string) string {
	short := roomID
	if len(short) > 8 {
		short = short[:8]
	}
	return "Room " + short
}

// CreateRoomRequest is the body of POST /rooms. An empty RoomID gets a generated one
// and an empty Name gets DefaultRoomName.
type CreateRoomRequest struct {
	RoomID    string `json:"room_id" binding:"omitempty,max=64"`
	Name      string `json:"name" binding:"omitempty,max=100"`
	CreatedBy string `json:"created_by" binding:"required,max=50"`
}

// RoomResponse is a room plus its live presence.
type RoomResponse struct {
	Room
	Usernames []string `json:"usernames,omitempty"`
}

// ListRoomsResponse is a page of rooms.
type ListRoomsResponse struct {
	Rooms      []Room `json:"rooms"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalPages int    `json:"total_pages"`
}

// ChatMessage is a persisted chat line.
type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Edited    bool      `json:"edited"`
	Timestamp time.Time `json:"timestamp"`
}

// AnalyticsEvent is a persisted action entry.
type AnalyticsEvent struct {
	ID         string                 `json:"id"`
	RoomID     string                 `json:"room_id"`
	Username   string                 `json:"username"`
	ActionType ActionType             `json:"action_type"`
	Details    map[string]interface{} `json:"details,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// CanvasSnapshot is the latest stored whiteboard state of a room.
type CanvasSnapshot struct {
	RoomID  string    `json:"room_id"`
	Key     string    `json:"key"`
	SavedAt time.Time `json:"saved_at"`
	State   []byte    `json:"-"`
}
