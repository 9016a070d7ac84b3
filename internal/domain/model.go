package domain

import (
	"time"

	"github.com/weiawesome/wes-io-collab/pkg/database"
)

// RoomModel is the GORM model for the rooms table.
type RoomModel struct {
	ID           string    `gorm:"type:varchar(64);primaryKey"`
	Name         string    `gorm:"type:varchar(100);not null;default:''"`
	CreatedBy    string    `gorm:"type:varchar(50);not null;index:idx_rooms_creator"`
	IsActive     bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	LastActiveAt time.Time `gorm:"index"`
}

func (RoomModel) TableName() string {
	return "rooms"
}

func (m *RoomModel) ToDomain() *Room {
	return &Room{
		ID:           m.ID,
		Name:         m.Name,
		CreatedBy:    m.CreatedBy,
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		LastActiveAt: m.LastActiveAt,
	}
}

func RoomToModel(r *Room) *RoomModel {
	return &RoomModel{
		ID:           r.ID,
		Name:         r.Name,
		CreatedBy:    r.CreatedBy,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
		LastActiveAt: r.LastActiveAt,
	}
}

// MessageModel is the GORM model for chat messages.
type MessageModel struct {
	ID        string    `gorm:"type:char(26);primaryKey"`
	RoomID    string    `gorm:"type:varchar(64);index:idx_messages_room_ts,priority:1;not null"`
	Username  string    `gorm:"type:varchar(50);not null"`
	Message   string    `gorm:"type:text;not null"`
	Edited    bool      `gorm:"default:false"`
	Timestamp time.Time `gorm:"index:idx_messages_room_ts,priority:2"`
}

func (MessageModel) TableName() string {
	return "messages"
}

func (m *MessageModel) ToDomain() *ChatMessage {
	return &ChatMessage{
		ID:        m.ID,
		RoomID:    m.RoomID,
		Username:  m.Username,
		Message:   m.Message,
		Edited:    m.Edited,
		Timestamp: m.Timestamp,
	}
}

func MessageToModel(msg *ChatMessage) *MessageModel {
	return &MessageModel{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		Username:  msg.Username,
		Message:   msg.Message,
		Edited:    msg.Edited,
		Timestamp: msg.Timestamp,
	}
}

// AnalyticsEventModel is one durable action entry.
type AnalyticsEventModel struct {
	ID         string           `gorm:"type:char(26);primaryKey"`
	RoomID     string           `gorm:"type:varchar(64);index:idx_analytics_room_ts,priority:1;not null"`
	Username   string           `gorm:"type:varchar(50);not null"`
	ActionType string           `gorm:"type:varchar(32);not null"`
	Details    database.JSONMap `gorm:"type:text"`
	OccurredAt time.Time        `gorm:"index:idx_analytics_room_ts,priority:2"`
}

func (AnalyticsEventModel) TableName() string {
	return "analytics_events"
}

func (m *AnalyticsEventModel) ToDomain() *AnalyticsEvent {
	return &AnalyticsEvent{
		ID:         m.ID,
		RoomID:     m.RoomID,
		Username:   m.Username,
		ActionType: ActionType(m.ActionType),
		Details:    map[string]interface{}(m.Details),
		OccurredAt: m.OccurredAt,
	}
}

// AnalyticsSnapshotModel holds the latest metrics snapshot per room.
type AnalyticsSnapshotModel struct {
	RoomID              string `gorm:"type:varchar(64);primaryKey"`
	ActiveUsers         int
	ActionsPerMinute    float64
	CollaborationEvents int
	PeakActivityTime    string `gorm:"type:varchar(8)"`
	AvgSessionTime      float64
	TotalActions        int
	LinesOfCode         int
	Compilations        int
	CapturedAt          time.Time
}

func (AnalyticsSnapshotModel) TableName() string {
	return "analytics_snapshots"
}

func (m *AnalyticsSnapshotModel) ToDomain() *RoomMetrics {
	return &RoomMetrics{
		RoomID:              m.RoomID,
		ActiveUsers:         m.ActiveUsers,
		ActionsPerMinute:    m.ActionsPerMinute,
		CollaborationEvents: m.CollaborationEvents,
		PeakActivityTime:    m.PeakActivityTime,
		AvgSessionTime:      m.AvgSessionTime,
		TotalActions:        m.TotalActions,
		LinesOfCode:         m.LinesOfCode,
		Compilations:        m.Compilations,
		ComputedAt:          m.CapturedAt,
	}
}

// Models lists every table owned by this service, for migrations.
func Models() []interface{} {
	return []interface{}{
		&RoomModel{},
		&MessageModel{},
		&AnalyticsEventModel{},
		&AnalyticsSnapshotModel{},
	}
}
