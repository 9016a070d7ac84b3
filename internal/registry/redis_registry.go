package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/wes-io-collab/internal/config"
	"github.com/weiawesome/wes-io-collab/pkg/log"
)

type RedisRegistry struct {
	client            *redis.Client
	advertiseAddress  string
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managedKeys       map[string]struct{} // keys owned by this instance
	mu                sync.RWMutex
	cancel            context.CancelFunc
	stopped           chan struct{}
}

func NewRedisRegistry(client *redis.Client, cfg config.RedisConfig) *RedisRegistry {
	return &RedisRegistry{
		client:            client,
		advertiseAddress:  cfg.AdvertiseAddress,
		prefix:            cfg.RegistryPrefix,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
		managedKeys:       make(map[string]struct{}),
	}
}

func (r *RedisRegistry) keyFor(roomID string) string {
	return fmt.Sprintf("%s:room:%s", r.prefix, roomID)
}

func (r *RedisRegistry) Register(ctx context.Context, roomID string) error {
	key := r.keyFor(roomID)

	if err := r.client.Set(ctx, key, r.advertiseAddress, r.keyTTL).Err(); err != nil {
		return fmt.Errorf("failed to register room: %w", err)
	}

	r.mu.Lock()
	r.managedKeys[key] = struct{}{}
	r.mu.Unlock()

	l := log.L()
	l.Info().Str(log.FieldRoomID, roomID).Str("address", r.advertiseAddress).Msg("registered room")
	return nil
}

// Deregister removes the room entry, but only while this instance still owns it.
func (r *RedisRegistry) Deregister(ctx context.Context, roomID string) error {
	key := r.keyFor(roomID)

	r.mu.Lock()
	delete(r.managedKeys, key)
	r.mu.Unlock()

	addr, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to deregister room: %w", err)
	}
	if addr != r.advertiseAddress {
		return nil
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to deregister room: %w", err)
	}

	l := log.L()
	l.Info().Str(log.FieldRoomID, roomID).Msg("deregistered room")
	return nil
}

func (r *RedisRegistry) Lookup(ctx context.Context, roomID string) (string, error) {
	addr, err := r.client.Get(ctx, r.keyFor(roomID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrRoomNotHosted
	}
	if err != nil {
		return "", fmt.Errorf("failed to lookup room: %w", err)
	}
	return addr, nil
}

func (r *RedisRegistry) StartHeartbeat(ctx context.Context) error {
	if r.heartbeatInterval <= 0 {
		return fmt.Errorf("invalid heartbeat interval %s", r.heartbeatInterval)
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.stopped = make(chan struct{})

	go r.heartbeatLoop(ctx)
	l := log.L()
	l.Info().Dur("interval", r.heartbeatInterval).Dur("ttl", r.keyTTL).Msg("registry heartbeat started")
	return nil
}

func (r *RedisRegistry) heartbeatLoop(ctx context.Context) {
	defer close(r.stopped)
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshKeys(ctx)
		}
	}
}

func (r *RedisRegistry) refreshKeys(ctx context.Context) {
	r.mu.RLock()
	keys := make([]string, 0, len(r.managedKeys))
	for k := range r.managedKeys {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	for _, key := range keys {
		if err := r.client.Set(ctx, key, r.advertiseAddress, r.keyTTL).Err(); err != nil {
			l := log.L()
			l.Error().Str("key", key).Err(err).Msg("failed to refresh key")
		}
	}
}

// StopHeartbeat cancels the refresh loop and waits for it to exit.
func (r *RedisRegistry) StopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
		<-r.stopped
		r.cancel = nil
	}
}

// Close drops every room this instance still advertises.
func (r *RedisRegistry) Close() error {
	r.StopHeartbeat()

	r.mu.Lock()
	keys := make([]string, 0, len(r.managedKeys))
	for k := range r.managedKeys {
		keys = append(keys, k)
	}
	r.managedKeys = make(map[string]struct{})
	r.mu.Unlock()

	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Del(ctx, keys...).Err()
}
