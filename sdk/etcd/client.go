package etcd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultEndpoint  = "http://127.0.0.1:2379"
	envEndpoints     = "ETCD_ENDPOINTS"
	envTimeoutSecond = "ETCD_TIMEOUT"
	envScope         = "ENV"
)

// ErrKeyNotFound la clave no existe bajo el namespace.
var ErrKeyNotFound = errors.New("etcd: key not found")

type (
	// KV operaciones de etcd que usa el cliente (facilita mocking).
	KV interface {
		Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
		Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
		Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error)
	}

	// Client cliente etcd con namespace /APP/ENV/ configurado.
	Client struct {
		raw     *clientv3.Client
		kv      KV
		prefix  string
		timeout time.Duration
	}
)

// Option modifica la configuración del cliente.
type Option func(*config)

type config struct {
	endpoints []string
	timeout   time.Duration
	app       string
	env       string
	prefix    string
}

func defaultConfig() *config {
	timeout := defaultTimeout
	if i, err := strconv.Atoi(os.Getenv(envTimeoutSecond)); err == nil && i > 0 {
		timeout = time.Duration(i) * time.Second
	}

	endpoints := EndpointsFromEnv()
	if len(endpoints) == 0 {
		endpoints = []string{defaultEndpoint}
	}

	return &config{
		endpoints: endpoints,
		timeout:   timeout,
		app:       "echo",
		env:       firstNonEmpty(os.Getenv(envScope), "development"),
	}
}

// WithEndpoints establece los endpoints del clúster.
func WithEndpoints(eps ...string) Option { return func(c *config) { c.endpoints = eps } }

// WithTimeout timeout de dial y de cada operación.
func WithTimeout(t time.Duration) Option { return func(c *config) { c.timeout = t } }

// WithApp nombre de la aplicación en el namespace.
func WithApp(name string) Option { return func(c *config) { c.app = name } }

// WithEnv entorno en el namespace.
func WithEnv(env string) Option { return func(c *config) { c.env = env } }

// WithPrefix prefijo explícito; reemplaza /APP/ENV/.
func WithPrefix(p string) Option { return func(c *config) { c.prefix = p } }

// EndpointsFromEnv lee ETCD_ENDPOINTS (lista separada por comas).
func EndpointsFromEnv() []string {
	return splitEndpoints(os.Getenv(envEndpoints))
}

func splitEndpoints(raw string) []string {
	var clean []string
	for _, p := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	return clean
}

// New crea un cliente etcd.
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.endpoints) == 0 {
		return nil, errors.New("etcd: no endpoints configured")
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.endpoints,
		DialTimeout: cfg.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating etcd client: %w", err)
	}

	prefix := cfg.prefixOrDefault()
	return &Client{
		raw:     cli,
		kv:      namespace.NewKV(cli, prefix),
		prefix:  prefix,
		timeout: cfg.timeout,
	}, nil
}

// NewWithKV crea un cliente sobre un KV ya construido (tests y embebidos).
func NewWithKV(kv KV, prefix string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{kv: kv, prefix: prefix, timeout: timeout}
}

func (c *config) prefixOrDefault() string {
	if c.prefix != "" {
		return c.prefix
	}
	return fmt.Sprintf("/%s/%s/", c.app, c.env)
}

// NamespacePrefix prefijo absoluto del cliente.
func (c *Client) NamespacePrefix() string { return c.prefix }

// GetVar obtiene una variable del namespace.
func (c *Client) GetVar(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.kv.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return string(resp.Kvs[0].Value), nil
}

// GetAll retorna todas las variables del namespace, con la clave relativa.
func (c *Client) GetAll(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.kv.Get(ctx, "", clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list namespace %s: %w", c.prefix, err)
	}

	out := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		out[string(kv.Key)] = string(kv.Value)
	}
	return out, nil
}

// GetVarWithDefault retorna defaultValue si la clave no existe o falla la lectura.
func (c *Client) GetVarWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := c.GetVar(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetVarInt variable como entero.
func (c *Client) GetVarInt(ctx context.Context, key string) (int, error) {
	value, err := c.GetVar(ctx, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// GetVarBool variable como booleano.
func (c *Client) GetVarBool(ctx context.Context, key string) (bool, error) {
	value, err := c.GetVar(ctx, key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(value)
}

// GetVarDuration variable en milisegundos como duración.
func (c *Client) GetVarDuration(ctx context.Context, key string) (time.Duration, error) {
	value, err := c.GetVarInt(ctx, key)
	if err != nil {
		return 0, err
	}
	return time.Duration(value) * time.Millisecond, nil
}

// GetVarDurationWithDefault como GetVarDuration con valor por defecto.
func (c *Client) GetVarDurationWithDefault(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	value, err := c.GetVarDuration(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

// SetVar escribe una variable.
func (c *Client) SetVar(ctx context.Context, key, val string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.kv.Put(ctx, key, val); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// DeleteVar elimina una variable.
func (c *Client) DeleteVar(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Close cierra la conexión.
func (c *Client) Close() error {
	if c.raw != nil {
		return c.raw.Close()
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
