package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventType names the payload an Event carries on the analytics stream.
type EventType string

const (
	EventActionRecorded  EventType = "action_recorded"
	EventMetricsSnapshot EventType = "metrics_snapshot"
	EventAnalyticsReset  EventType = "analytics_reset"
)

var ErrUnknownEventType = errors.New("unknown analytics event type")

// Event is the analytics stream envelope. RoomID is also the Kafka message key,
// so every event of a room lands on one partition in publish order.
type Event struct {
	Type      EventType       `json:"type"`
	RoomID    string          `json:"room_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewActionRecorded(p ActionRecordedPayload) (*Event, error) {
	return newEvent(EventActionRecorded, p.RoomID, p)
}

func NewMetricsSnapshot(p MetricsSnapshotPayload) (*Event, error) {
	return newEvent(EventMetricsSnapshot, p.RoomID, p)
}

func NewAnalyticsReset(roomID string) (*Event, error) {
	return newEvent(EventAnalyticsReset, roomID, AnalyticsResetPayload{RoomID: roomID})
}

func newEvent(eventType EventType, roomID string, payload interface{}) (*Event, error) {
	if roomID == "" {
		return nil, fmt.Errorf("%s event has no room id", eventType)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &Event{
		Type:      eventType,
		RoomID:    roomID,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Decode returns the typed payload for e.Type: ActionRecordedPayload,
// MetricsSnapshotPayload or AnalyticsResetPayload. Types this build does not
// know yield ErrUnknownEventType.
func (e *Event) Decode() (interface{}, error) {
	var err error
	switch e.Type {
	case EventActionRecorded:
		var p ActionRecordedPayload
		if err = json.Unmarshal(e.Payload, &p); err == nil {
			return p, nil
		}
	case EventMetricsSnapshot:
		var p MetricsSnapshotPayload
		if err = json.Unmarshal(e.Payload, &p); err == nil {
			return p, nil
		}
	case EventAnalyticsReset:
		var p AnalyticsResetPayload
		if err = json.Unmarshal(e.Payload, &p); err == nil {
			return p, nil
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}
	return nil, fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
}

// Publisher writes analytics events onto a room channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
}

// Subscriber reads analytics events. Subscribe follows one room channel,
// SubscribePattern follows every room matching the pattern.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan *Event, error)
	SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error)
	Unsubscribe(ctx context.Context, channel string) error
}

// PubSub is the analytics event bus, backed by Redis or Kafka.
type PubSub interface {
	Publisher
	Subscriber
	Close() error
}
