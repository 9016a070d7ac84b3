package config

import (
	"time"

	"github.com/spf13/viper"
	pkgconfig "github.com/weiawesome/wes-io-collab/pkg/config"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
	"github.com/weiawesome/wes-io-collab/pkg/storage"
)

type Config struct {
	Server      ServerConfig
	WebSocket   WebSocketConfig
	Coordinator CoordinatorConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	PubSub      pubsub.Config  `mapstructure:"pubsub"`
	Storage     storage.Config `mapstructure:"storage"`
	Canvas      CanvasConfig
	Log         LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBufferSize int           `mapstructure:"send_buffer_size"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type CoordinatorConfig struct {
	EventLogCap     int           `mapstructure:"event_log_cap"`
	MetricsWindow   time.Duration `mapstructure:"metrics_window"`
	MetricsInterval time.Duration `mapstructure:"metrics_interval"`
	PersistTimeout  time.Duration `mapstructure:"persist_timeout"`
	QueueSize       int           `mapstructure:"queue_size"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Address           string
	Password          string
	DB                int
	CachePrefix       string        `mapstructure:"cache_prefix"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	RegistryPrefix    string        `mapstructure:"registry_prefix"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	KeyTTL            time.Duration `mapstructure:"key_ttl"`
	AdvertiseAddress  string        `mapstructure:"advertise_address"`
}

type CanvasConfig struct {
	KeepVersions int `mapstructure:"keep_versions"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads config.yaml from configPath (default ./config) and applies
// defaults and environment overrides.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "./config"
	}
	v, err := pkgconfig.Load(configPath, "config")
	if err != nil {
		return nil, err
	}

	setDefaults(v)
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Coordinator.MetricsWindow = parseDuration(v, "coordinator.metrics_window", time.Minute)
	cfg.Coordinator.MetricsInterval = parseDuration(v, "coordinator.metrics_interval", 5*time.Second)
	cfg.Coordinator.PersistTimeout = parseDuration(v, "coordinator.persist_timeout", 5*time.Second)
	cfg.Redis.CacheTTL = parseDuration(v, "redis.cache_ttl", 10*time.Minute)
	cfg.Redis.HeartbeatInterval = parseDuration(v, "redis.heartbeat_interval", 10*time.Second)
	cfg.Redis.KeyTTL = parseDuration(v, "redis.key_ttl", 30*time.Second)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)

	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 1<<20)
	v.SetDefault("websocket.send_buffer_size", 256)
	v.SetDefault("websocket.allowed_origins", []string{})

	v.SetDefault("coordinator.event_log_cap", 100)
	v.SetDefault("coordinator.metrics_window", "1m")
	v.SetDefault("coordinator.metrics_interval", "5s")
	v.SetDefault("coordinator.persist_timeout", "5s")
	v.SetDefault("coordinator.queue_size", 1024)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "collab")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/collab.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_prefix", "collab:room")
	v.SetDefault("redis.cache_ttl", "10m")
	v.SetDefault("redis.registry_prefix", "collab:registry")
	v.SetDefault("redis.heartbeat_interval", "10s")
	v.SetDefault("redis.key_ttl", "30s")
	v.SetDefault("redis.advertise_address", "localhost:8090")

	ps := pubsub.DefaultConfig()
	v.SetDefault("pubsub.driver", ps.Driver)
	v.SetDefault("pubsub.redis.address", ps.Redis.Address)
	v.SetDefault("pubsub.redis.pool_size", ps.Redis.PoolSize)
	v.SetDefault("pubsub.redis.read_timeout", ps.Redis.ReadTimeout)
	v.SetDefault("pubsub.redis.write_timeout", ps.Redis.WriteTimeout)
	v.SetDefault("pubsub.redis.buffer_size", ps.Redis.BufferSize)
	v.SetDefault("pubsub.kafka.brokers", ps.Kafka.Brokers)
	v.SetDefault("pubsub.kafka.group_id", ps.Kafka.GroupID)
	v.SetDefault("pubsub.kafka.partitions", ps.Kafka.Partitions)
	v.SetDefault("pubsub.kafka.topics", ps.Kafka.Topics)
	v.SetDefault("pubsub.kafka.buffer_size", ps.Kafka.BufferSize)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.base_path", "./data/canvas")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "collab-canvas")

	v.SetDefault("canvas.keep_versions", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func bindEnv(v *viper.Viper) {
	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")
	v.BindEnv("database.file_path", "DB_FILE_PATH")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.advertise_address", "ADVERTISE_ADDRESS")
	v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("pubsub.redis.address", "PUBSUB_REDIS_ADDRESS")
	v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.local.base_path", "STORAGE_BASE_PATH")
	v.BindEnv("storage.s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.s3.bucket", "S3_BUCKET")
	v.BindEnv("storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("log.level", "LOG_LEVEL")
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}
