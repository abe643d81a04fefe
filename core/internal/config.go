package internal

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xKoRx/echo/sdk/etcd"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/wire"
)

// Backends de settings store.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config configuración del relay.
//
// Prioridad: defaults < archivo YAML < variables ECHO_* < etcd (/echo/<env>/).
type Config struct {
	Environment string `mapstructure:"environment"`

	GRPC      GRPCConfig         `mapstructure:"grpc"`
	Websocket WebsocketConfig    `mapstructure:"websocket"`
	Relay     RelaySettings      `mapstructure:"relay"`
	Store     StoreConfig        `mapstructure:"store"`
	Postgres  PostgresConfig     `mapstructure:"postgres"`
	Redis     RedisConfig        `mapstructure:"redis"`
	Telemetry telemetry.Settings `mapstructure:"telemetry"`
}

// GRPCConfig servidor gRPC (ingest, subscribe y operador).
type GRPCConfig struct {
	Address           string `mapstructure:"address"`
	Port              int    `mapstructure:"port"`
	KeepAliveTimeS    int    `mapstructure:"keepalive_time_s"`
	KeepAliveTimeoutS int    `mapstructure:"keepalive_timeout_s"`
	KeepAliveMinTimeS int    `mapstructure:"keepalive_min_time_s"`
}

// WebsocketConfig feed en vivo; Addr vacío lo deshabilita.
type WebsocketConfig struct {
	Addr string `mapstructure:"addr"`
}

// RelaySettings comportamiento del relay.
type RelaySettings struct {
	HeartbeatIntervalMs int64  `mapstructure:"heartbeat_interval_ms"`
	RecentEvents        int    `mapstructure:"recent_events"`
	FilterAtRelay       bool   `mapstructure:"filter_at_relay"`
	Codec               string `mapstructure:"codec"`
	SubscriberBuffer    int    `mapstructure:"subscriber_buffer"`
}

// StoreConfig backend de settings.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

// PostgresConfig conexión del settings store.
type PostgresConfig struct {
	DSN    string `mapstructure:"dsn"`
	Schema string `mapstructure:"schema"`
}

// RedisConfig mirror opcional de eventos; Addr vacío lo deshabilita.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
	MaxLen   int64  `mapstructure:"max_len"`
}

// HeartbeatInterval intervalo como duración.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Relay.HeartbeatIntervalMs) * time.Millisecond
}

func setRelayDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("grpc.address", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.keepalive_time_s", 60)
	v.SetDefault("grpc.keepalive_timeout_s", 20)
	v.SetDefault("grpc.keepalive_min_time_s", 10)

	v.SetDefault("websocket.addr", ":8080")

	v.SetDefault("relay.heartbeat_interval_ms", DefaultHeartbeatInterval.Milliseconds())
	v.SetDefault("relay.recent_events", DefaultRecentEventsCapacity)
	v.SetDefault("relay.filter_at_relay", false)
	v.SetDefault("relay.codec", "json")
	v.SetDefault("relay.subscriber_buffer", DefaultSubscriberBuffer)

	v.SetDefault("store.backend", StoreMemory)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.schema", "echo")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "echo:routed")
	v.SetDefault("redis.max_len", 10000)

	v.SetDefault("telemetry.service_name", "echo-relay")
	v.SetDefault("telemetry.service_version", "1.0.0")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.metrics_endpoint", "")
	v.SetDefault("telemetry.log_level", "info")
	v.SetDefault("telemetry.log_format", "json")
	v.SetDefault("telemetry.disable_metrics", false)
	v.SetDefault("telemetry.disable_traces", false)
}

// LoadConfig carga la configuración del relay.
//
// path vacío omite el archivo. El overlay de etcd sólo se aplica si
// ETCD_ENDPOINTS está definido.
//
// Uso:
//
//	cfg, err := internal.LoadConfig(ctx, "relay.yaml")
//	if err != nil {
//	    return err
//	}
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	v := viper.New()
	setRelayDefaults(v)

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
		if err := overlayFromEtcd(ctx, v); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayFromEtcd aplica /echo/<env>/ sobre v.
func overlayFromEtcd(ctx context.Context, v *viper.Viper) error {
	env := os.Getenv("ENV")
	if env == "" {
		env = v.GetString("environment")
	}

	client, err := etcd.New(etcd.WithApp("echo"), etcd.WithEnv(env))
	if err != nil {
		return fmt.Errorf("failed to create ETCD client: %w", err)
	}
	defer client.Close()

	if _, err := client.Overlay(ctx, v); err != nil {
		return fmt.Errorf("etcd overlay %s: %w", client.NamespacePrefix(), err)
	}
	return nil
}

// Validate verifica la configuración mínima.
func (c *Config) Validate() error {
	if c.GRPC.Port < 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("grpc.port out of range: %d", c.GRPC.Port)
	}
	if c.Relay.HeartbeatIntervalMs <= 0 {
		return fmt.Errorf("relay.heartbeat_interval_ms must be positive")
	}
	if _, err := wire.CodecByName(c.Relay.Codec); err != nil {
		return fmt.Errorf("relay.codec: %w", err)
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn not configured")
		}
	default:
		return fmt.Errorf("unknown store.backend: %s", c.Store.Backend)
	}
	return nil
}
