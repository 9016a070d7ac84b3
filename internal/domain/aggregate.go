package domain

import (
	"fmt"
	"time"
)

// ActionType classifies a recorded user action.
type ActionType string

const (
	ActionCodeChange     ActionType = "CODE_CHANGE"
	ActionChatMessage    ActionType = "CHAT_MESSAGE"
	ActionDrawingUpdate  ActionType = "DRAWING_UPDATE"
	ActionCanvasEdit     ActionType = "CANVAS_EDIT"
	ActionCompilerStatus ActionType = "COMPILER_STATUS"
	ActionFileOperation  ActionType = "FILE_OPERATION"
	ActionCursorMove     ActionType = "CURSOR_MOVE"
	ActionLanguageChange ActionType = "LANGUAGE_CHANGE"
	ActionSessionStart   ActionType = "SESSION_START"
	ActionSessionEnd     ActionType = "SESSION_END"
)

var knownActions = map[ActionType]struct{}{
	ActionCodeChange:     {},
	ActionChatMessage:    {},
	ActionDrawingUpdate:  {},
	ActionCanvasEdit:     {},
	ActionCompilerStatus: {},
	ActionFileOperation:  {},
	ActionCursorMove:     {},
	ActionLanguageChange: {},
	ActionSessionStart:   {},
	ActionSessionEnd:     {},
}

// ParseActionType validates a client-supplied action type.
func ParseActionType(s string) (ActionType, error) {
	a := ActionType(s)
	if _, ok := knownActions[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownActionType, s)
	}
	return a, nil
}

// Collaborative reports whether the action counts towards collaborationEvents.
func (a ActionType) Collaborative() bool {
	return a == ActionChatMessage || a == ActionDrawingUpdate
}

// ActionEntry is one line of a user's event log.
type ActionEntry struct {
	RoomID     string                 `json:"room_id"`
	Username   string                 `json:"username"`
	ActionType ActionType             `json:"action_type"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// AggregateRecord holds one user's counters in one room.
type AggregateRecord struct {
	RoomID        string        `json:"room_id"`
	Username      string        `json:"username"`
	TotalActions  int           `json:"total_actions"`
	LinesOfCode   int           `json:"lines_of_code"`
	Compilations  int           `json:"compilations"`
	FirstActiveAt time.Time     `json:"first_active_at"`
	LastActiveAt  time.Time     `json:"last_active_at"`
	Events        []ActionEntry `json:"events"`
}

// Clone returns a copy whose event log does not alias the original.
func (r *AggregateRecord) Clone() *AggregateRecord {
	c := *r
	c.Events = make([]ActionEntry, len(r.Events))
	copy(c.Events, r.Events)
	return &c
}

// SessionMinutes is the span between the first and last recorded action.
func (r *AggregateRecord) SessionMinutes() float64 {
	if r.LastActiveAt.Before(r.FirstActiveAt) {
		return 0
	}
	return r.LastActiveAt.Sub(r.FirstActiveAt).Minutes()
}

// PeakActivityNone is reported when a room has no recorded events.
const PeakActivityNone = "N/A"

// RoomMetrics is the derived, read-only view of a room's activity.
type RoomMetrics struct {
	RoomID              string    `json:"room_id"`
	ActiveUsers         int       `json:"active_users"`
	ActionsPerMinute    float64   `json:"actions_per_minute"`
	CollaborationEvents int       `json:"collaboration_events"`
	PeakActivityTime    string    `json:"peak_activity_time"`
	AvgSessionTime      float64   `json:"avg_session_time"`
	TotalActions        int       `json:"total_actions"`
	LinesOfCode         int       `json:"lines_of_code"`
	Compilations        int       `json:"compilations"`
	ComputedAt          time.Time `json:"computed_at"`
}
