package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
)

func TestPublisherAndPersisterRoundTrip(t *testing.T) {
	bus := newFakeBus()
	repo := newFakeAnalyticsRepo()
	pub := NewAnalyticsPublisher(bus)
	persister := NewAnalyticsPersister(bus, repo)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- persister.Run(ctx) }()

	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, pub.PublishAction(ctx, domain.ActionEntry{
		RoomID: "r", Username: "alice", ActionType: domain.ActionCodeChange,
		Details: map[string]interface{}{"lines_changed": float64(2)}, Timestamp: at,
	}))
	require.NoError(t, pub.PublishMetrics(ctx, domain.RoomMetrics{RoomID: "r", TotalActions: 1, PeakActivityTime: "09:00", ComputedAt: at}))

	require.Eventually(t, func() bool {
		_, err := repo.GetSnapshot(ctx, "r")
		return repo.eventCount() == 1 && err == nil
	}, time.Second, 5*time.Millisecond)

	events, err := NewAnalyticsService(repo).GetHistory(ctx, "r", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Username)
	assert.Equal(t, domain.ActionCodeChange, events[0].ActionType)
	assert.True(t, at.Equal(events[0].OccurredAt))

	require.NoError(t, pub.PublishReset(ctx, "r"))
	require.Eventually(t, func() bool { return repo.eventCount() == 0 }, time.Second, 5*time.Millisecond)

	_, err = NewAnalyticsService(repo).GetSnapshot(ctx, "r")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	assert.Equal(t, []string{pubsub.AnalyticsChannel("r"), pubsub.AnalyticsChannel("r"), pubsub.AnalyticsChannel("r")}, bus.published)

	cancel()
	assert.NoError(t, <-done)
}

func TestPersisterHandleIsIdempotentAndTolerant(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAnalyticsRepo()
	p := NewAnalyticsPersister(nil, repo)

	ev, err := pubsub.NewActionRecorded(pubsub.ActionRecordedPayload{
		ID: "01HX0000000000000000000000", RoomID: "r", Username: "bob", ActionType: "CHAT_MESSAGE",
	})
	require.NoError(t, err)
	require.NoError(t, p.Handle(ctx, ev))
	require.NoError(t, p.Handle(ctx, ev))
	assert.Equal(t, 1, repo.eventCount())

	unknown := &pubsub.Event{Type: "something_else", RoomID: "r", Payload: []byte(`{}`)}
	assert.NoError(t, p.Handle(ctx, unknown))

	bad := &pubsub.Event{Type: pubsub.EventMetricsSnapshot, RoomID: "r", Payload: []byte(`"nope"`)}
	assert.Error(t, p.Handle(ctx, bad))
}
