package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/utils"
)

func newTestEngine(interval time.Duration) (*StatusEngine, *utils.FakeClock) {
	clock := utils.NewFakeClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	return NewStatusEngine(clock, interval, nil), clock
}

func heartbeat(id string, role domain.Role) domain.Heartbeat {
	return domain.Heartbeat{AccountID: id, Role: role, IsTradeAllowed: true}
}

func TestStatusEngine_LivenessTransitions(t *testing.T) {
	ctx := context.Background()
	engine, clock := newTestEngine(time.Second)

	assert.Equal(t, domain.LivenessUnknown, engine.Liveness("M1"))

	_, created := engine.Heartbeat(ctx, heartbeat("M1", domain.RoleSource))
	assert.True(t, created)
	assert.Equal(t, domain.LivenessOnline, engine.Liveness("M1"))

	clock.Advance(2 * time.Second)
	assert.Equal(t, domain.LivenessOnline, engine.Liveness("M1"), "exactly 2x interval is still online")

	clock.Advance(time.Nanosecond)
	assert.Equal(t, domain.LivenessOffline, engine.Liveness("M1"))

	_, created = engine.Heartbeat(ctx, heartbeat("M1", domain.RoleSource))
	assert.False(t, created)
	assert.Equal(t, domain.LivenessOnline, engine.Liveness("M1"))

	require.True(t, engine.Unregister(ctx, "M1"))
	assert.Equal(t, domain.LivenessRemoved, engine.Liveness("M1"))
	assert.False(t, engine.Unregister(ctx, "unknown"))
}

func TestStatusEngine_RegisterAfterRemoveCreatesFreshAccount(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(time.Second)

	hb := heartbeat("S1", domain.RoleDestination)
	hb.Equity = 1000
	hb.OpenPositions = 4
	engine.Heartbeat(ctx, hb)
	engine.Unregister(ctx, "S1")

	acc := engine.Register(ctx, domain.Register{AccountID: "S1", Role: domain.RoleDestination, Platform: "MT5"})
	assert.Equal(t, domain.LivenessOnline, acc.Liveness)
	assert.Equal(t, "MT5", acc.Platform)
	assert.Zero(t, acc.Equity)
	assert.Zero(t, acc.OpenPositionCount)
}

func TestStatusEngine_HeartbeatAfterRemoveRegisters(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(time.Second)

	engine.Register(ctx, domain.Register{AccountID: "S1", Role: domain.RoleDestination})
	engine.Unregister(ctx, "S1")

	acc, created := engine.Heartbeat(ctx, heartbeat("S1", domain.RoleDestination))
	assert.True(t, created)
	assert.Equal(t, domain.LivenessOnline, acc.Liveness)
}

// Secuencia de heartbeats con interval=30s y asserts del estado del link en cada paso.
func TestStatusEngine_LinkStatusSequence(t *testing.T) {
	ctx := context.Background()
	interval := 30 * time.Second
	engine, clock := newTestEngine(interval)
	link := domain.Link{LinkID: "M1->S1", SourceAccount: "M1", DestinationAccount: "S1", Enabled: true}

	assert.Equal(t, domain.LinkWaiting, engine.LinkStatus(link), "no heartbeats yet")

	engine.Heartbeat(ctx, heartbeat("M1", domain.RoleSource))
	assert.Equal(t, domain.LinkWaiting, engine.LinkStatus(link), "destination unknown")

	engine.Heartbeat(ctx, heartbeat("S1", domain.RoleDestination))
	assert.Equal(t, domain.LinkActive, engine.LinkStatus(link))

	clock.Advance(interval)
	engine.Heartbeat(ctx, heartbeat("S1", domain.RoleDestination))
	assert.Equal(t, domain.LinkActive, engine.LinkStatus(link), "source missed nothing yet")

	// M1 latió por última vez hace 30s; a los 2×interval sigue activo.
	clock.Advance(interval)
	engine.Heartbeat(ctx, heartbeat("S1", domain.RoleDestination))
	assert.Equal(t, domain.LinkActive, engine.LinkStatus(link))

	clock.Advance(time.Millisecond)
	assert.Equal(t, domain.LinkWaiting, engine.LinkStatus(link), "source past 2x interval")

	engine.Heartbeat(ctx, heartbeat("M1", domain.RoleSource))
	assert.Equal(t, domain.LinkActive, engine.LinkStatus(link))

	link.Enabled = false
	assert.Equal(t, domain.LinkDisabled, engine.LinkStatus(link))
	link.Enabled = true

	engine.Unregister(ctx, "S1")
	assert.Equal(t, domain.LinkWaiting, engine.LinkStatus(link))
}

func TestStatusEngine_LinkActiveIffEnabledAndBothLive(t *testing.T) {
	ctx := context.Background()
	engine, clock := newTestEngine(time.Second)

	engine.Heartbeat(ctx, heartbeat("M1", domain.RoleSource))
	clock.Advance(1500 * time.Millisecond)
	engine.Heartbeat(ctx, heartbeat("S1", domain.RoleDestination))
	clock.Advance(600 * time.Millisecond)

	tests := []struct {
		name    string
		enabled bool
		src     string
		dst     string
		want    domain.LinkStatus
	}{
		{"destination unknown", true, "S1", "S1x", domain.LinkWaiting},
		{"source stale", true, "M1", "S1", domain.LinkWaiting},
		{"disabled", false, "M1", "S1", domain.LinkDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := domain.Link{SourceAccount: tt.src, DestinationAccount: tt.dst, Enabled: tt.enabled}
			assert.Equal(t, tt.want, engine.LinkStatus(link))
		})
	}

	engine.Heartbeat(ctx, heartbeat("M1", domain.RoleSource))
	assert.Equal(t, domain.LinkActive, engine.LinkStatus(domain.Link{SourceAccount: "M1", DestinationAccount: "S1", Enabled: true}))
}

func TestStatusEngine_AccountsSnapshot(t *testing.T) {
	ctx := context.Background()
	engine, clock := newTestEngine(time.Second)

	hb := heartbeat("S1", domain.RoleDestination)
	hb.Balance = 1000
	hb.Equity = 990
	hb.OpenPositions = 2
	engine.Heartbeat(ctx, hb)
	engine.Register(ctx, domain.Register{AccountID: "M1", Role: domain.RoleSource, Platform: "MT4"})
	clock.Advance(3 * time.Second)

	accounts := engine.Accounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, "M1", accounts[0].AccountID)
	assert.Equal(t, domain.LivenessOffline, accounts[0].Liveness)
	assert.Equal(t, 990.0, accounts[1].Equity)
	assert.Equal(t, 2, accounts[1].OpenPositionCount)
	assert.True(t, accounts[1].IsTradeAllowed)
}

func TestStatusEngine_Equity(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(time.Second)

	src := heartbeat("M1", domain.RoleSource)
	src.Equity = 10000
	engine.Heartbeat(ctx, src)

	assert.Equal(t, 10000.0, engine.Equity("M1"))
	assert.Zero(t, engine.Equity("unknown"))

	engine.Unregister(ctx, "M1")
	assert.Zero(t, engine.Equity("M1"))
}
