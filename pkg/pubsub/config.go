package pubsub

import (
	"fmt"
	"time"
)

// Config holds the configuration for the event bus.
type Config struct {
	Driver string      `mapstructure:"driver"` // "redis", "kafka"
	Redis  RedisConfig `mapstructure:"redis"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

// RedisConfig holds Redis-specific configuration.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BufferSize   int           `mapstructure:"buffer_size"`
}

// KafkaConfig holds Kafka-specific configuration.
type KafkaConfig struct {
	Brokers    string   `mapstructure:"brokers"`
	GroupID    string   `mapstructure:"group_id"`
	Partitions int      `mapstructure:"partitions"`
	Topics     []string `mapstructure:"topics"`
	BufferSize int      `mapstructure:"buffer_size"`
}

// DefaultConfig returns a Redis-backed configuration for local development.
func DefaultConfig() Config {
	return Config{
		Driver: "redis",
		Redis: RedisConfig{
			Address:      "localhost:6379",
			PoolSize:     10,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			BufferSize:   100,
		},
		Kafka: KafkaConfig{
			Brokers:    "localhost:9092",
			GroupID:    "collab-analytics",
			Partitions: 4,
			Topics:     []string{TopicCollabToAnalytics},
			BufferSize: 100,
		},
	}
}

// NewPubSub creates the driver named in cfg.
func NewPubSub(cfg Config) (PubSub, error) {
	switch cfg.Driver {
	case "kafka":
		return NewKafkaPubSub(cfg.Kafka)
	case "redis", "":
		return NewRedisPubSub(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported pubsub driver: %s", cfg.Driver)
	}
}

func bufferSize(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
