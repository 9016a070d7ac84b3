package pubsub

import (
	"fmt"
	"time"
)

// Channel naming follows {prefix}:room:{roomID}:to_{target}.
const (
	ChannelCollabToAnalytics = "collab:room:%s:to_analytics"
	PatternCollabToAnalytics = "collab:room:*:to_analytics"

	// TopicCollabToAnalytics is the Kafka topic the channels above map onto.
	TopicCollabToAnalytics = "collab-to-analytics"
)

// AnalyticsChannel returns the analytics channel for a room.
func AnalyticsChannel(roomID string) string {
	return fmt.Sprintf(ChannelCollabToAnalytics, roomID)
}

// ActionRecordedPayload mirrors one accepted user action.
// ID is a ULID assigned by the publisher, stable across redeliveries.
type ActionRecordedPayload struct {
	ID         string                 `json:"id"`
	RoomID     string                 `json:"room_id"`
	Username   string                 `json:"username"`
	ActionType string                 `json:"action_type"`
	Details    map[string]interface{} `json:"details,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// MetricsSnapshotPayload carries derived room metrics at a point in time.
type MetricsSnapshotPayload struct {
	RoomID              string    `json:"room_id"`
	ActiveUsers         int       `json:"active_users"`
	ActionsPerMinute    float64   `json:"actions_per_minute"`
	CollaborationEvents int       `json:"collaboration_events"`
	PeakActivityTime    string    `json:"peak_activity_time"`
	AvgSessionTime      float64   `json:"avg_session_time"`
	TotalActions        int       `json:"total_actions"`
	LinesOfCode         int       `json:"lines_of_code"`
	Compilations        int       `json:"compilations"`
	CapturedAt          time.Time `json:"captured_at"`
}

// AnalyticsResetPayload asks consumers to drop durable analytics for a room.
type AnalyticsResetPayload struct {
	RoomID string `json:"room_id"`
}
