package etcd

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// fakeKV KV en memoria; soporta Get exacto y Get con prefijo.
type fakeKV struct {
	data    map[string]string
	failGet bool
}

func newFakeKV(data map[string]string) *fakeKV {
	if data == nil {
		data = map[string]string{}
	}
	return &fakeKV{data: data}
}

func (f *fakeKV) Get(_ context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	if f.failGet {
		return nil, errors.New("simulated get failure")
	}

	op := clientv3.OpGet(key, opts...)
	resp := &clientv3.GetResponse{}
	if len(op.RangeBytes()) == 0 {
		if v, ok := f.data[key]; ok {
			resp.Kvs = append(resp.Kvs, &mvccpb.KeyValue{Key: []byte(key), Value: []byte(v)})
		}
		return resp, nil
	}

	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		if strings.HasPrefix(k, key) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		resp.Kvs = append(resp.Kvs, &mvccpb.KeyValue{Key: []byte(k), Value: []byte(f.data[k])})
	}
	return resp, nil
}

func (f *fakeKV) Put(_ context.Context, key, val string, _ ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	f.data[key] = val
	return &clientv3.PutResponse{}, nil
}

func (f *fakeKV) Delete(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.DeleteResponse, error) {
	delete(f.data, key)
	return &clientv3.DeleteResponse{}, nil
}

func TestClient_GetVar(t *testing.T) {
	ctx := context.Background()
	c := NewWithKV(newFakeKV(map[string]string{
		"heartbeat_interval_ms": "1000",
		"filter_at_relay":       "true",
		"codec":                 "msgpack",
	}), "/echo-relay/test/", time.Second)

	v, err := c.GetVar(ctx, "codec")
	require.NoError(t, err)
	assert.Equal(t, "msgpack", v)

	_, err = c.GetVar(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	n, err := c.GetVarInt(ctx, "heartbeat_interval_ms")
	require.NoError(t, err)
	assert.Equal(t, 1000, n)

	b, err := c.GetVarBool(ctx, "filter_at_relay")
	require.NoError(t, err)
	assert.True(t, b)

	d := c.GetVarDurationWithDefault(ctx, "heartbeat_interval_ms", time.Minute)
	assert.Equal(t, time.Second, d)
	assert.Equal(t, time.Minute, c.GetVarDurationWithDefault(ctx, "missing", time.Minute))
	assert.Equal(t, "json", c.GetVarWithDefault(ctx, "missing", "json"))
	assert.Equal(t, "/echo-relay/test/", c.NamespacePrefix())
}

func TestClient_GetAll(t *testing.T) {
	kv := newFakeKV(map[string]string{"a": "1", "b": "2"})
	c := NewWithKV(kv, "/echo/test/", 0)

	all, err := c.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)

	kv.failGet = true
	_, err = c.GetAll(context.Background())
	assert.Error(t, err)
}

func TestClient_SetAndDelete(t *testing.T) {
	ctx := context.Background()
	c := NewWithKV(newFakeKV(nil), "/echo/test/", time.Second)

	require.NoError(t, c.SetVar(ctx, "codec", "json"))
	v, err := c.GetVar(ctx, "codec")
	require.NoError(t, err)
	assert.Equal(t, "json", v)

	require.NoError(t, c.DeleteVar(ctx, "codec"))
	_, err = c.GetVar(ctx, "codec")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.NoError(t, c.Close())
}

func TestSplitEndpoints(t *testing.T) {
	assert.Equal(t, []string{"http://a:2379", "http://b:2379"}, splitEndpoints(" http://a:2379 , ,http://b:2379"))
	assert.Empty(t, splitEndpoints(""))
}

func TestConfigPrefix(t *testing.T) {
	cfg := &config{app: "echo-agent", env: "production"}
	assert.Equal(t, "/echo-agent/production/", cfg.prefixOrDefault())
	cfg.prefix = "/custom/"
	assert.Equal(t, "/custom/", cfg.prefixOrDefault())
}

type mapSetter map[string]any

func (m mapSetter) Set(key string, value any) { m[key] = value }

func TestClient_Overlay(t *testing.T) {
	kv := newFakeKV(map[string]string{
		"relay/grpc_port":             "6000",
		"relay/heartbeat_interval_ms": "15000",
		"postgres/dsn":                "postgres://echo@db/echo",
	})
	c := NewWithKV(kv, "/echo/test/", time.Second)

	dst := mapSetter{}
	n, err := c.Overlay(context.Background(), dst)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "6000", dst["relay.grpc_port"])
	assert.Equal(t, "15000", dst["relay.heartbeat_interval_ms"])
	assert.Equal(t, "postgres://echo@db/echo", dst["postgres.dsn"])

	kv.failGet = true
	_, err = c.Overlay(context.Background(), dst)
	assert.Error(t, err)
}
