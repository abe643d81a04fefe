package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestNew_WithoutCollector(t *testing.T) {
	ctx := context.Background()
	client, err := New(ctx, "telemetry-test", "test", WithLogLevel("debug"), WithLogFormat("console"))
	require.NoError(t, err)
	require.NotNil(t, client.Metrics())

	ctx = AppendEventAttrs(ctx, attribute.String("echo.account_id", "M1"))
	client.Info(ctx, "hello")
	client.RecordCounter(ctx, "test.counter", 1)
	client.RecordLatency(ctx, "test.op", 1.5)
	client.Metrics().RecordRouted(ctx)

	_, span := client.StartSpan(ctx, "test.span")
	span.End()

	assert.NoError(t, client.Shutdown(ctx))
}

func TestNew_InvalidLogLevel(t *testing.T) {
	_, err := New(context.Background(), "telemetry-test", "test", WithLogLevel("loud"))
	assert.Error(t, err)
}

func TestContextAttrs_DoNotLeakBetweenSiblings(t *testing.T) {
	base := AppendEventAttrs(context.Background(), attribute.String("a", "1"))
	left := AppendEventAttrs(base, attribute.String("b", "left"))
	right := AppendEventAttrs(base, attribute.String("b", "right"))

	assert.Len(t, GetEventAttrs(base), 1)
	assert.Equal(t, "left", GetEventAttrs(left)[1].Value.AsString())
	assert.Equal(t, "right", GetEventAttrs(right)[1].Value.AsString())
}

func TestWithTradeEvent(t *testing.T) {
	ctx := WithTradeEvent(context.Background(), "", "M1", 100, "open")
	attrs := GetEventAttrs(ctx)
	require.Len(t, attrs, 3)
	assert.Equal(t, "M1", attrs[0].Value.AsString())
	assert.Equal(t, int64(100), attrs[1].Value.AsInt64())

	ctx = WithTradeEvent(context.Background(), "evt-1", "M1", 100, "close")
	assert.Len(t, GetEventAttrs(ctx), 4)

	ctx = WithAccount(context.Background(), "agent", "S1")
	assert.Len(t, GetCommonAttrs(ctx), 2)
	assert.Empty(t, GetEventAttrs(ctx))
}

func TestNewNop(t *testing.T) {
	client := NewNop()
	client.Warn(context.Background(), "ignored")
	client.Metrics().RecordOrder(context.Background(), "success")
	assert.NoError(t, client.Shutdown(context.Background()))
}

func TestSettings_Options(t *testing.T) {
	cfg := DefaultConfig("svc", "test")
	for _, opt := range (Settings{
		ServiceVersion: "1.2.3",
		OTLPEndpoint:   "collector:4317",
		LogLevel:       "debug",
		DisableTraces:  true,
	}).Options() {
		opt(&cfg)
	}

	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, "collector:4317", cfg.tracesEndpoint())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.EnableTraces)
	assert.True(t, cfg.EnableMetrics)
}
