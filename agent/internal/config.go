// Package internal contiene el endpoint client de Echo.
package internal

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/etcd"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/wire"
)

// Bridges de terminal soportados.
const (
	BridgePipe  = "pipe"
	BridgePaper = "paper"
)

// Config configuración del agent.
//
// Prioridad: defaults < archivo YAML < variables ECHO_* < etcd (/echo/<env>/).
type Config struct {
	Environment string `mapstructure:"environment"`

	Account   AccountConfig      `mapstructure:"account"`
	Relay     RelayClientConfig  `mapstructure:"relay"`
	Agent     AgentSettings      `mapstructure:"agent"`
	Terminal  TerminalConfig     `mapstructure:"terminal"`
	Telemetry telemetry.Settings `mapstructure:"telemetry"`
}

// AccountConfig identidad de la cuenta que atiende este agent.
type AccountConfig struct {
	ID       string      `mapstructure:"id"`
	Role     domain.Role `mapstructure:"role"`
	Platform string      `mapstructure:"platform"`
	Broker   string      `mapstructure:"broker"`
}

// RelayClientConfig conexión al relay.
type RelayClientConfig struct {
	Addr               string `mapstructure:"addr"`
	Codec              string `mapstructure:"codec"`
	ReconnectBackoffMs int64  `mapstructure:"reconnect_backoff_ms"`
	ConnectTimeoutMs   int64  `mapstructure:"connect_timeout_ms"`
	SendQueue          int    `mapstructure:"send_queue"`
	KeepAliveTimeS     int    `mapstructure:"keepalive_time_s"`
	KeepAliveTimeoutS  int    `mapstructure:"keepalive_timeout_s"`
}

// AgentSettings comportamiento del loop.
type AgentSettings struct {
	HeartbeatIntervalMs int64  `mapstructure:"heartbeat_interval_ms"`
	TickIntervalMs      int64  `mapstructure:"tick_interval_ms"`
	ReconcileEveryTicks int    `mapstructure:"reconcile_every_ticks"`
	RetryBackoffMs      int64  `mapstructure:"retry_backoff_ms"`
	LedgerPath          string `mapstructure:"ledger_path"`
}

// TerminalConfig bridge hacia el terminal de trading.
type TerminalConfig struct {
	Bridge        string `mapstructure:"bridge"`
	PipeName      string `mapstructure:"pipe_name"`
	CallTimeoutMs int64  `mapstructure:"call_timeout_ms"`
}

// HeartbeatInterval intervalo de heartbeat.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Agent.HeartbeatIntervalMs) * time.Millisecond
}

// TickInterval intervalo del loop ejecutor.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Agent.TickIntervalMs) * time.Millisecond
}

// RetryBackoff espera fija entre reintentos de ejecución.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Agent.RetryBackoffMs) * time.Millisecond
}

// ConnectTimeout plazo para alcanzar el relay al arrancar.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Relay.ConnectTimeoutMs) * time.Millisecond
}

// ReconnectBackoff espera entre reconexiones al relay.
func (c *Config) ReconnectBackoff() time.Duration {
	return time.Duration(c.Relay.ReconnectBackoffMs) * time.Millisecond
}

func setAgentDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("account.id", "")
	v.SetDefault("account.role", string(domain.RoleDestination))
	v.SetDefault("account.platform", "MT4")
	v.SetDefault("account.broker", "")

	v.SetDefault("relay.addr", "localhost:50051")
	v.SetDefault("relay.codec", "json")
	v.SetDefault("relay.reconnect_backoff_ms", 2000)
	v.SetDefault("relay.connect_timeout_ms", 10000)
	v.SetDefault("relay.send_queue", 256)
	v.SetDefault("relay.keepalive_time_s", 60)
	v.SetDefault("relay.keepalive_timeout_s", 20)

	v.SetDefault("agent.heartbeat_interval_ms", 30000)
	v.SetDefault("agent.tick_interval_ms", 250)
	v.SetDefault("agent.reconcile_every_ticks", 20)
	v.SetDefault("agent.retry_backoff_ms", 500)
	v.SetDefault("agent.ledger_path", "data/echo-agent.db")

	v.SetDefault("terminal.bridge", BridgePipe)
	v.SetDefault("terminal.pipe_name", "")
	v.SetDefault("terminal.call_timeout_ms", 5000)

	v.SetDefault("telemetry.service_name", "echo-agent")
	v.SetDefault("telemetry.service_version", "1.0.0")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.metrics_endpoint", "")
	v.SetDefault("telemetry.log_level", "info")
	v.SetDefault("telemetry.log_format", "json")
	v.SetDefault("telemetry.disable_metrics", false)
	v.SetDefault("telemetry.disable_traces", false)
}

// LoadConfig carga la configuración del agent.
//
// path vacío omite el archivo. El overlay de etcd sólo se aplica si
// ETCD_ENDPOINTS está definido; las claves son compartidas con el relay
// (ej: agent/heartbeat_interval_ms, relay/addr).
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	v := viper.New()
	setAgentDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("ECHO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(etcd.EndpointsFromEnv()) > 0 {
		env := os.Getenv("ENV")
		if env == "" {
			env = v.GetString("environment")
		}
		client, err := etcd.New(etcd.WithApp("echo"), etcd.WithEnv(env))
		if err != nil {
			return nil, fmt.Errorf("failed to create ETCD client: %w", err)
		}
		_, err = client.Overlay(ctx, v)
		client.Close()
		if err != nil {
			return nil, fmt.Errorf("etcd overlay: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Terminal.PipeName == "" && cfg.Account.ID != "" {
		cfg.Terminal.PipeName = "echo_" + cfg.Account.ID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate verifica la configuración mínima.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Account.ID) == "" {
		return fmt.Errorf("account.id not configured")
	}
	if strings.ContainsAny(c.Account.ID, " /") {
		return fmt.Errorf("account.id cannot contain spaces or '/'")
	}
	if !c.Account.Role.Valid() {
		return fmt.Errorf("account.role must be source or destination")
	}
	if c.Relay.Addr == "" {
		return fmt.Errorf("relay.addr not configured")
	}
	if c.Relay.ConnectTimeoutMs <= 0 {
		return fmt.Errorf("relay.connect_timeout_ms must be positive")
	}
	if _, err := wire.CodecByName(c.Relay.Codec); err != nil {
		return fmt.Errorf("relay.codec: %w", err)
	}
	if c.Agent.HeartbeatIntervalMs <= 0 || c.Agent.TickIntervalMs <= 0 {
		return fmt.Errorf("agent intervals must be positive")
	}
	if c.Agent.RetryBackoffMs < 0 {
		return fmt.Errorf("agent.retry_backoff_ms cannot be negative")
	}
	switch c.Terminal.Bridge {
	case BridgePaper:
	case BridgePipe:
		if c.Terminal.PipeName == "" {
			return fmt.Errorf("terminal.pipe_name not configured")
		}
	default:
		return fmt.Errorf("unknown terminal.bridge: %s", c.Terminal.Bridge)
	}
	return nil
}
