package internal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ETCD_ENDPOINTS", "")

	cfg, err := LoadConfig(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 50051, cfg.GRPC.Port)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval())
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, "json", cfg.Relay.Codec)
	assert.False(t, cfg.Relay.FilterAtRelay)
	assert.Equal(t, DefaultRecentEventsCapacity, cfg.Relay.RecentEvents)
	assert.Equal(t, "echo-relay", cfg.Telemetry.ServiceName)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	t.Setenv("ETCD_ENDPOINTS", "")
	t.Setenv("ECHO_RELAY_FILTER_AT_RELAY", "true")

	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
grpc:
  port: 6000
relay:
  heartbeat_interval_ms: 10000
  codec: msgpack
store:
  backend: postgres
postgres:
  dsn: postgres://echo@localhost/echo?sslmode=disable
`), 0o600))

	cfg, err := LoadConfig(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.GRPC.Port)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval())
	assert.Equal(t, "msgpack", cfg.Relay.Codec)
	assert.True(t, cfg.Relay.FilterAtRelay)
	assert.Equal(t, StorePostgres, cfg.Store.Backend)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			GRPC:  GRPCConfig{Port: 50051},
			Relay: RelaySettings{HeartbeatIntervalMs: 30000, Codec: "json"},
			Store: StoreConfig{Backend: StoreMemory},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.GRPC.Port = -1 }},
		{"heartbeat", func(c *Config) { c.Relay.HeartbeatIntervalMs = 0 }},
		{"codec", func(c *Config) { c.Relay.Codec = "xml" }},
		{"backend", func(c *Config) { c.Store.Backend = "sqlite" }},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = StorePostgres }},
	}

	base := valid()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
