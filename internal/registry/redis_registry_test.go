package registry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-collab/internal/config"
)

func newTestRegistry(t *testing.T, mr *miniredis.Miniredis, addr string) *RedisRegistry {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRegistry(client, config.RedisConfig{
		RegistryPrefix:    "collab:registry",
		KeyTTL:            30 * time.Second,
		HeartbeatInterval: 10 * time.Millisecond,
		AdvertiseAddress:  addr,
	})
}

func TestRegisterLookupDeregister(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	reg := newTestRegistry(t, mr, "10.0.0.1:8090")

	_, err := reg.Lookup(ctx, "r1")
	assert.ErrorIs(t, err, ErrRoomNotHosted)

	require.NoError(t, reg.Register(ctx, "r1"))
	addr, err := reg.Lookup(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8090", addr)
	assert.Equal(t, 30*time.Second, mr.TTL("collab:registry:room:r1"))

	require.NoError(t, reg.Deregister(ctx, "r1"))
	_, err = reg.Lookup(ctx, "r1")
	assert.ErrorIs(t, err, ErrRoomNotHosted)
	require.NoError(t, reg.Deregister(ctx, "r1"))
}

func TestDeregisterLeavesOtherInstancesEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	a := newTestRegistry(t, mr, "a:1")
	b := newTestRegistry(t, mr, "b:1")

	require.NoError(t, a.Register(ctx, "r"))
	require.NoError(t, b.Register(ctx, "r"))
	require.NoError(t, a.Deregister(ctx, "r"))

	addr, err := b.Lookup(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "b:1", addr)
}

func TestHeartbeatRefreshesTTLAndCloseCleansUp(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	reg := newTestRegistry(t, mr, "a:1")

	require.NoError(t, reg.Register(ctx, "r"))
	mr.SetTTL("collab:registry:room:r", time.Second)
	require.NoError(t, reg.StartHeartbeat(ctx))

	require.Eventually(t, func() bool {
		return mr.TTL("collab:registry:room:r") == 30*time.Second
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, reg.Close())
	assert.False(t, mr.Exists("collab:registry:room:r"))
}
