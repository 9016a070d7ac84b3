package domain

import (
	"encoding/json"
	"time"
)

// Envelope is the frame every client sends: {"type": "...", "payload": {...}}.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EventFields are the routing fields read out of an inbound payload.
type EventFields struct {
	RoomID     string                 `json:"room_id"`
	Username   string                 `json:"username"`
	Target     Handle                 `json:"target"`
	ActionType string                 `json:"action_type"`
	Details    map[string]interface{} `json:"details"`
	Message    string                 `json:"message"`
	State      json.RawMessage        `json:"state"`
}

// RoutedEvent is one decoded inbound event. It is never stored.
type RoutedEvent struct {
	Kind      EventKind
	RoomID    string
	Username  string
	Sender    Handle
	Target    Handle
	Fields    EventFields
	Payload   json.RawMessage
	Timestamp time.Time
}

// OutboundMessage is the frame the server sends for every non-error event.
type OutboundMessage struct {
	Type      string      `json:"type"`
	RoomID    string      `json:"room_id,omitempty"`
	From      Handle      `json:"from,omitempty"`
	Username  string      `json:"username,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ErrorMessage is sent only to the connection that caused the error.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorMessage builds an error frame.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    KindError.String(),
		Code:    code,
		Message: message,
	}
}

// JoinedPayload announces a new member together with the full member list.
type JoinedPayload struct {
	Handle   Handle   `json:"handle"`
	Username string   `json:"username"`
	Clients  []Member `json:"clients"`
}

// DisconnectedPayload announces that a handle left the room.
type DisconnectedPayload struct {
	Handle   Handle `json:"handle"`
	Username string `json:"username"`
	Reason   string `json:"reason"`
}

// Disconnect reasons.
const (
	ReasonLeft         = "left"
	ReasonDisconnected = "disconnected"
	ReasonReplaced     = "replaced"
	ReasonSwitchedRoom = "switched_room"
)

// EvictedPayload tells a connection its session was taken over by a newer one.
type EvictedPayload struct {
	RoomID     string `json:"room_id"`
	Username   string `json:"username"`
	ReplacedBy Handle `json:"replaced_by"`
}

// RoomCreatedPayload announces that the room was created by the first joiner.
type RoomCreatedPayload struct {
	RoomID    string `json:"room_id"`
	CreatedBy string `json:"created_by"`
}

// UsersPayload answers fetch-users.
type UsersPayload struct {
	Users []string `json:"users"`
}

// ActionLogPayload is broadcast whenever a user action is recorded.
type ActionLogPayload struct {
	Entry  ActionEntry      `json:"entry"`
	Record *AggregateRecord `json:"record"`
}

// AnalyticsSnapshotPayload answers fetch-analytics.
type AnalyticsSnapshotPayload struct {
	Metrics RoomMetrics       `json:"metrics"`
	Records []AggregateRecord `json:"records"`
}

// CanvasSavedPayload acknowledges a stored canvas snapshot.
type CanvasSavedPayload struct {
	Key string `json:"key"`
}
