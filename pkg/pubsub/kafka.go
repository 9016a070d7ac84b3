package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

// channelToTopicAndKey maps a room channel to a Kafka topic keyed by room, so
// per-room ordering survives partitioning.
//
//	"collab:room:R1:to_analytics" → topic "collab-to-analytics", key "R1"
func channelToTopicAndKey(channel string) (topic, key string, err error) {
	parts := strings.Split(channel, ":")
	if len(parts) != 4 || parts[1] != "room" || parts[2] == "" || !strings.HasPrefix(parts[3], "to_") {
		return "", "", fmt.Errorf("invalid channel format: %s", channel)
	}
	topic = parts[0] + "-" + strings.ReplaceAll(parts[3], "_", "-")
	return topic, parts[2], nil
}

// patternToTopic maps "collab:room:*:to_analytics" to "collab-to-analytics".
func patternToTopic(pattern string) (string, error) {
	topic, _, err := channelToTopicAndKey(strings.Replace(pattern, "*", "any", 1))
	return topic, err
}

var groupIDRegexp = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func sanitizeGroupID(s string) string {
	return groupIDRegexp.ReplaceAllString(s, "-")
}

type kafkaSubscription struct {
	consumer *kafka.Consumer
	cancel   context.CancelFunc
}

// KafkaPubSub implements PubSub on Kafka topics.
type KafkaPubSub struct {
	producer      *kafka.Producer
	subscriptions map[string]*kafkaSubscription
	config        KafkaConfig
	mu            sync.Mutex
	doneCh        chan struct{}
}

// NewKafkaPubSub creates the shared producer and makes sure the configured topics exist.
func NewKafkaPubSub(cfg KafkaConfig) (*KafkaPubSub, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	k := &KafkaPubSub{
		producer:      p,
		subscriptions: make(map[string]*kafkaSubscription),
		config:        cfg,
		doneCh:        make(chan struct{}),
	}

	go k.deliveryReports()

	if err := k.ensureTopics(); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Msg("failed to ensure kafka topics, they may already exist")
	}

	return k, nil
}

func (k *KafkaPubSub) ensureTopics() error {
	topics := k.config.Topics
	if len(topics) == 0 {
		topics = []string{TopicCollabToAnalytics}
	}
	partitions := k.config.Partitions
	if partitions <= 0 {
		partitions = 4
	}

	admin, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	specs := make([]kafka.TopicSpecification, 0, len(topics))
	for _, t := range topics {
		specs = append(specs, kafka.TopicSpecification{
			Topic:             t,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, specs)
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}

	l := pkglog.L()
	for _, r := range results {
		if r.Error.Code() != kafka.ErrNoError && r.Error.Code() != kafka.ErrTopicAlreadyExists {
			l.Warn().Str("topic", r.Topic).Str("error", r.Error.String()).Msg("failed to create topic")
		}
	}
	return nil
}

func (k *KafkaPubSub) deliveryReports() {
	l := pkglog.L()
	for e := range k.producer.Events() {
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			l.Error().Err(m.TopicPartition.Error).Str("key", string(m.Key)).Msg("kafka delivery failed")
		}
	}
	close(k.doneCh)
}

func (k *KafkaPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	topic, key, err := channelToTopicAndKey(channel)
	if err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          data,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

// Subscribe consumes the channel's topic and keeps only messages keyed by its room.
func (k *KafkaPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	topic, roomID, err := channelToTopicAndKey(channel)
	if err != nil {
		return nil, err
	}
	return k.subscribeTopic(ctx, channel, topic, roomID)
}

// SubscribePattern consumes every message on the pattern's topic.
func (k *KafkaPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	topic, err := patternToTopic(pattern)
	if err != nil {
		return nil, err
	}
	return k.subscribeTopic(ctx, pattern, topic, "")
}

func (k *KafkaPubSub) subscribeTopic(ctx context.Context, subKey, topic, roomFilter string) (<-chan *Event, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if existing, ok := k.subscriptions[subKey]; ok {
		existing.cancel()
		existing.consumer.Close()
		delete(k.subscriptions, subKey)
	}

	groupID := k.config.GroupID
	if groupID == "" {
		groupID = "collab-default"
	}
	// Room-filtered subscribers get their own group so they do not steal
	// partitions from the pattern consumer.
	if roomFilter != "" {
		groupID = groupID + "-" + sanitizeGroupID(subKey)
	}

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":       k.config.Brokers,
		"group.id":                groupID,
		"auto.offset.reset":       "latest",
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	if err := c.Subscribe(topic, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	k.subscriptions[subKey] = &kafkaSubscription{consumer: c, cancel: cancel}

	eventCh := make(chan *Event, bufferSize(k.config.BufferSize))
	go k.consume(subCtx, c, eventCh, roomFilter)
	return eventCh, nil
}

func (k *KafkaPubSub) consume(ctx context.Context, c *kafka.Consumer, eventCh chan<- *Event, roomFilter string) {
	defer close(eventCh)

	l := pkglog.L()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch e := c.Poll(500).(type) {
		case *kafka.Message:
			if roomFilter != "" && string(e.Key) != roomFilter {
				continue
			}

			var event Event
			if err := json.Unmarshal(e.Value, &event); err != nil {
				l.Warn().Err(err).Msg("dropping undecodable kafka event")
				continue
			}

			select {
			case eventCh <- &event:
			case <-ctx.Done():
				return
			default:
				l.Warn().Str("type", string(event.Type)).Msg("subscriber buffer full, event dropped")
			}

		case kafka.Error:
			l.Error().Str("error", e.String()).Bool("fatal", e.IsFatal()).Msg("kafka consumer error")
			if e.IsFatal() {
				return
			}
		}
	}
}

func (k *KafkaPubSub) Unsubscribe(ctx context.Context, channel string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	sub, ok := k.subscriptions[channel]
	if !ok {
		return nil
	}
	delete(k.subscriptions, channel)
	sub.cancel()
	if err := sub.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close consumer: %w", err)
	}
	return nil
}

// Close stops consumers, flushes pending messages and waits for delivery reports to drain.
func (k *KafkaPubSub) Close() error {
	k.mu.Lock()
	for key, sub := range k.subscriptions {
		sub.cancel()
		sub.consumer.Close()
		delete(k.subscriptions, key)
	}
	k.mu.Unlock()

	k.producer.Flush(5000)
	k.producer.Close()
	<-k.doneCh
	return nil
}
