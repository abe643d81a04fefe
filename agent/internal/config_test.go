package internal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/echo/sdk/domain"
)

func TestLoadConfig_RequiresAccount(t *testing.T) {
	t.Setenv("ETCD_ENDPOINTS", "")

	_, err := LoadConfig(context.Background(), "")
	assert.ErrorContains(t, err, "account.id")
}

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	t.Setenv("ETCD_ENDPOINTS", "")
	t.Setenv("ECHO_ACCOUNT_ID", "S1")

	cfg, err := LoadConfig(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDestination, cfg.Account.Role)
	assert.Equal(t, "localhost:50051", cfg.Relay.Addr)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout())
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval())
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval())
	assert.Equal(t, 2*time.Second, cfg.ReconnectBackoff())
	assert.Equal(t, BridgePipe, cfg.Terminal.Bridge)
	assert.Equal(t, "echo_S1", cfg.Terminal.PipeName)
	assert.Equal(t, "echo-agent", cfg.Telemetry.ServiceName)
}

func TestLoadConfig_File(t *testing.T) {
	t.Setenv("ETCD_ENDPOINTS", "")

	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
account:
  id: M1
  role: source
  broker: ICMarkets
relay:
  addr: relay.internal:6000
  codec: msgpack
agent:
  heartbeat_interval_ms: 5000
terminal:
  bridge: paper
`), 0o600))

	cfg, err := LoadConfig(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "M1", cfg.Account.ID)
	assert.Equal(t, domain.RoleSource, cfg.Account.Role)
	assert.Equal(t, "relay.internal:6000", cfg.Relay.Addr)
	assert.Equal(t, "msgpack", cfg.Relay.Codec)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval())
	assert.Equal(t, BridgePaper, cfg.Terminal.Bridge)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"account with slash", func(c *Config) { c.Account.ID = "M1/x" }, "account.id"},
		{"unknown role", func(c *Config) { c.Account.Role = "observer" }, "account.role"},
		{"missing relay addr", func(c *Config) { c.Relay.Addr = "" }, "relay.addr"},
		{"unknown codec", func(c *Config) { c.Relay.Codec = "xml" }, "relay.codec"},
		{"no connect timeout", func(c *Config) { c.Relay.ConnectTimeoutMs = 0 }, "relay.connect_timeout_ms"},
		{"zero tick", func(c *Config) { c.Agent.TickIntervalMs = 0 }, "intervals"},
		{"pipe without name", func(c *Config) {
			c.Terminal.Bridge = BridgePipe
			c.Terminal.PipeName = ""
		}, "pipe_name"},
		{"unknown bridge", func(c *Config) { c.Terminal.Bridge = "fix" }, "terminal.bridge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testAgentConfig(t, domain.RoleDestination, "S1")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
