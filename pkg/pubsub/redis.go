package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

// RedisPubSub implements PubSub on Redis pub/sub.
type RedisPubSub struct {
	client        *redis.Client
	subscriptions map[string]*redis.PubSub
	bufferSize    int
	mu            sync.Mutex
}

// NewRedisPubSub connects and pings Redis.
func NewRedisPubSub(cfg RedisConfig) (*RedisPubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPubSub{
		client:        client,
		subscriptions: make(map[string]*redis.PubSub),
		bufferSize:    bufferSize(cfg.BufferSize),
	}, nil
}

func (r *RedisPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.client.Publish(ctx, channel, data).Err()
}

func (r *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return r.track(ctx, channel, r.client.Subscribe(ctx, channel))
}

func (r *RedisPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	return r.track(ctx, pattern, r.client.PSubscribe(ctx, pattern))
}

func (r *RedisPubSub) track(ctx context.Context, key string, sub *redis.PubSub) (<-chan *Event, error) {
	// Receive blocks until the subscription is confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
	}

	r.mu.Lock()
	if existing, ok := r.subscriptions[key]; ok {
		existing.Close()
	}
	r.subscriptions[key] = sub
	r.mu.Unlock()

	eventCh := make(chan *Event, r.bufferSize)
	go r.forward(ctx, key, sub, eventCh)
	return eventCh, nil
}

func (r *RedisPubSub) Unsubscribe(ctx context.Context, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subscriptions[channel]
	if !ok {
		return nil
	}
	delete(r.subscriptions, channel)
	return sub.Close()
}

func (r *RedisPubSub) Close() error {
	r.mu.Lock()
	for key, sub := range r.subscriptions {
		sub.Close()
		delete(r.subscriptions, key)
	}
	r.mu.Unlock()

	return r.client.Close()
}

// forward decodes messages onto eventCh, dropping them when the consumer lags.
func (r *RedisPubSub) forward(ctx context.Context, key string, sub *redis.PubSub, eventCh chan<- *Event) {
	defer close(eventCh)

	l := pkglog.L()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				l.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping undecodable event")
				continue
			}

			select {
			case eventCh <- &event:
			case <-ctx.Done():
				return
			default:
				l.Warn().Str("subscription", key).Str("type", string(event.Type)).Msg("subscriber buffer full, event dropped")
			}
		}
	}
}
