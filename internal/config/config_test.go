package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Coordinator.EventLogCap)
	assert.Equal(t, time.Minute, cfg.Coordinator.MetricsWindow)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "redis", cfg.PubSub.Driver)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, 10, cfg.Canvas.KeepVersions)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: 9999
coordinator:
  event_log_cap: 25
  metrics_window: 2m
pubsub:
  driver: kafka
  kafka:
    brokers: kafka:9092
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Coordinator.EventLogCap)
	assert.Equal(t, 2*time.Minute, cfg.Coordinator.MetricsWindow)
	assert.Equal(t, "kafka", cfg.PubSub.Driver)
	assert.Equal(t, "kafka:9092", cfg.PubSub.Kafka.Brokers)
}
