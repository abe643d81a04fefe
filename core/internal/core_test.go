package internal

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/xKoRx/echo/core/internal/repository"
	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/rpc"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/utils"
)

func testCoreConfig(port int) *Config {
	return &Config{
		Environment: "test",
		GRPC:        GRPCConfig{Address: "127.0.0.1", Port: port, KeepAliveTimeS: 60, KeepAliveTimeoutS: 20, KeepAliveMinTimeS: 10},
		Relay:       RelaySettings{HeartbeatIntervalMs: 30000, RecentEvents: 10, Codec: "json", SubscriberBuffer: 16},
		Store:       StoreConfig{Backend: StoreMemory},
	}
}

func TestCore_StartServesSnapshot(t *testing.T) {
	ctx := context.Background()
	clock := utils.NewFakeClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	store := repository.NewMemoryStore(clock)
	_, err := store.Create(ctx, domain.Link{
		LinkID:             "M1->S1",
		SourceAccount:      "M1",
		DestinationAccount: "S1",
		Enabled:            true,
		LotCalculationMode: domain.LotModeMultiplier,
		LotMultiplier:      1,
	})
	require.NoError(t, err)

	core, err := New(ctx, testCoreConfig(0), WithStore(store), WithTelemetry(telemetry.NewNop()), WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, core.Start())
	t.Cleanup(func() { _ = core.Shutdown() })

	assert.Empty(t, core.FeedAddress())
	require.NotEmpty(t, core.GRPCAddress())

	conn, err := grpc.NewClient(core.GRPCAddress(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := rpc.NewRelayClient(conn).Snapshot(callCtx, &emptypb.Empty{})
	require.NoError(t, err)

	var snap rpc.Snapshot
	require.NoError(t, rpc.FromStruct(out, &snap))
	require.Len(t, snap.Links, 1)
	assert.Equal(t, "M1->S1", snap.Links[0].LinkID)
	assert.Equal(t, int64(30000), snap.HeartbeatIntervalMs)
}

func TestCore_StartFailsWhenPortTaken(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()
	port := lis.Addr().(*net.TCPAddr).Port

	core, err := New(context.Background(), testCoreConfig(port), WithTelemetry(telemetry.NewNop()))
	require.NoError(t, err)
	defer core.Shutdown()

	assert.Error(t, core.Start())
	assert.Empty(t, core.GRPCAddress())
}

func TestCore_ShutdownIsIdempotent(t *testing.T) {
	core, err := New(context.Background(), testCoreConfig(0), WithTelemetry(telemetry.NewNop()))
	require.NoError(t, err)
	require.NoError(t, core.Start())

	require.NoError(t, core.Shutdown())
	require.NoError(t, core.Shutdown())
	assert.Error(t, core.Start())
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)

	cfg := testCoreConfig(0)
	cfg.Relay.Codec = "xml"
	_, err = New(context.Background(), cfg, WithTelemetry(telemetry.NewNop()))
	assert.Error(t, err)
}
