package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisPubSub(t *testing.T) *RedisPubSub {
	t.Helper()
	mr := miniredis.RunT(t)
	ps, err := NewRedisPubSub(RedisConfig{Address: mr.Addr(), BufferSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { ps.Close() })
	return ps
}

func receive(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func TestRedisPatternSubscriberSeesEveryRoom(t *testing.T) {
	ctx := context.Background()
	ps := newTestRedisPubSub(t)

	all, err := ps.SubscribePattern(ctx, PatternCollabToAnalytics)
	require.NoError(t, err)
	r1, err := ps.Subscribe(ctx, AnalyticsChannel("r1"))
	require.NoError(t, err)

	for _, room := range []string{"r1", "r2"} {
		ev, err := NewAnalyticsReset(room)
		require.NoError(t, err)
		require.NoError(t, ps.Publish(ctx, AnalyticsChannel(room), ev))
	}

	first, second := receive(t, all), receive(t, all)
	assert.Equal(t, []string{"r1", "r2"}, []string{first.RoomID, second.RoomID})
	assert.Equal(t, EventAnalyticsReset, first.Type)

	only := receive(t, r1)
	assert.Equal(t, "r1", only.RoomID)
	payload, err := only.Decode()
	require.NoError(t, err)
	assert.Equal(t, AnalyticsResetPayload{RoomID: "r1"}, payload)
	select {
	case ev := <-r1:
		t.Fatalf("room subscriber got another room's event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRedisUnsubscribeClosesChannel(t *testing.T) {
	ctx := context.Background()
	ps := newTestRedisPubSub(t)

	ch, err := ps.Subscribe(ctx, AnalyticsChannel("r1"))
	require.NoError(t, err)
	require.NoError(t, ps.Unsubscribe(ctx, AnalyticsChannel("r1")))

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
	assert.NoError(t, ps.Unsubscribe(ctx, "never-subscribed"))
}
