package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/internal/repository"
	"github.com/weiawesome/wes-io-collab/pkg/log"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
)

var ErrSnapshotNotFound = errors.New("no analytics snapshot for room")

// AnalyticsPublisher mirrors coordinator analytics onto the event bus.
type AnalyticsPublisher struct {
	pub pubsub.Publisher
}

func NewAnalyticsPublisher(pub pubsub.Publisher) *AnalyticsPublisher {
	return &AnalyticsPublisher{pub: pub}
}

func (p *AnalyticsPublisher) PublishAction(ctx context.Context, entry domain.ActionEntry) error {
	ev, err := pubsub.NewActionRecorded(pubsub.ActionRecordedPayload{
		ID:         ulid.Make().String(),
		RoomID:     entry.RoomID,
		Username:   entry.Username,
		ActionType: string(entry.ActionType),
		Details:    entry.Details,
		OccurredAt: entry.Timestamp,
	})
	return p.publish(ctx, ev, err)
}

func (p *AnalyticsPublisher) PublishMetrics(ctx context.Context, m domain.RoomMetrics) error {
	ev, err := pubsub.NewMetricsSnapshot(pubsub.MetricsSnapshotPayload{
		RoomID:              m.RoomID,
		ActiveUsers:         m.ActiveUsers,
		ActionsPerMinute:    m.ActionsPerMinute,
		CollaborationEvents: m.CollaborationEvents,
		PeakActivityTime:    m.PeakActivityTime,
		AvgSessionTime:      m.AvgSessionTime,
		TotalActions:        m.TotalActions,
		LinesOfCode:         m.LinesOfCode,
		Compilations:        m.Compilations,
		CapturedAt:          m.ComputedAt,
	})
	return p.publish(ctx, ev, err)
}

func (p *AnalyticsPublisher) PublishReset(ctx context.Context, roomID string) error {
	ev, err := pubsub.NewAnalyticsReset(roomID)
	return p.publish(ctx, ev, err)
}

func (p *AnalyticsPublisher) publish(ctx context.Context, ev *pubsub.Event, buildErr error) error {
	if buildErr != nil {
		return fmt.Errorf("failed to build analytics event: %w", buildErr)
	}
	return p.pub.Publish(ctx, pubsub.AnalyticsChannel(ev.RoomID), ev)
}

// AnalyticsPersister consumes the analytics stream of every room and
// writes it to the database.
type AnalyticsPersister struct {
	sub  pubsub.Subscriber
	repo repository.AnalyticsRepository
}

func NewAnalyticsPersister(sub pubsub.Subscriber, repo repository.AnalyticsRepository) *AnalyticsPersister {
	return &AnalyticsPersister{sub: sub, repo: repo}
}

// Run blocks until ctx is cancelled or the subscription closes.
func (p *AnalyticsPersister) Run(ctx context.Context) error {
	events, err := p.sub.SubscribePattern(ctx, pubsub.PatternCollabToAnalytics)
	if err != nil {
		return fmt.Errorf("failed to subscribe to analytics stream: %w", err)
	}

	l := log.L()
	l.Info().Str("pattern", pubsub.PatternCollabToAnalytics).Msg("analytics persister started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := p.Handle(ctx, ev); err != nil {
				l.Error().Err(err).Str(log.FieldRoomID, ev.RoomID).Str("event_type", string(ev.Type)).Msg("failed to persist analytics event")
			}
		}
	}
}

// Handle applies one event. Unknown event types are skipped.
func (p *AnalyticsPersister) Handle(ctx context.Context, ev *pubsub.Event) error {
	payload, err := ev.Decode()
	if errors.Is(err, pubsub.ErrUnknownEventType) {
		l := log.L()
		l.Debug().Str("event_type", string(ev.Type)).Msg("ignoring analytics event")
		return nil
	}
	if err != nil {
		return err
	}

	switch payload := payload.(type) {
	case pubsub.ActionRecordedPayload:
		if payload.ID == "" {
			payload.ID = ulid.Make().String()
		}
		return p.repo.CreateEvent(ctx, &domain.AnalyticsEvent{
			ID:         payload.ID,
			RoomID:     payload.RoomID,
			Username:   payload.Username,
			ActionType: domain.ActionType(payload.ActionType),
			Details:    payload.Details,
			OccurredAt: payload.OccurredAt,
		})
	case pubsub.MetricsSnapshotPayload:
		return p.repo.UpsertSnapshot(ctx, &domain.RoomMetrics{
			RoomID:              payload.RoomID,
			ActiveUsers:         payload.ActiveUsers,
			ActionsPerMinute:    payload.ActionsPerMinute,
			CollaborationEvents: payload.CollaborationEvents,
			PeakActivityTime:    payload.PeakActivityTime,
			AvgSessionTime:      payload.AvgSessionTime,
			TotalActions:        payload.TotalActions,
			LinesOfCode:         payload.LinesOfCode,
			Compilations:        payload.Compilations,
			ComputedAt:          payload.CapturedAt,
		})
	case pubsub.AnalyticsResetPayload:
		return p.repo.DeleteByRoom(ctx, payload.RoomID)
	default:
		return fmt.Errorf("%w: %T", pubsub.ErrUnknownEventType, payload)
	}
}

type analyticsServiceImpl struct {
	repo repository.AnalyticsRepository
}

func NewAnalyticsService(repo repository.AnalyticsRepository) AnalyticsService {
	return &analyticsServiceImpl{repo: repo}
}

func (s *analyticsServiceImpl) GetHistory(ctx context.Context, roomID string, limit int) ([]domain.AnalyticsEvent, error) {
	return s.repo.ListEvents(ctx, roomID, clampLimit(limit))
}

func (s *analyticsServiceImpl) GetSnapshot(ctx context.Context, roomID string) (*domain.RoomMetrics, error) {
	m, err := s.repo.GetSnapshot(ctx, roomID)
	if errors.Is(err, repository.ErrSnapshotNotFound) {
		return nil, ErrSnapshotNotFound
	}
	return m, err
}
