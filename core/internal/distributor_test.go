package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/echo/core/internal/repository"
	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/utils"
	"github.com/xKoRx/echo/sdk/wire"
)

type distributorFixture struct {
	clock *utils.FakeClock
	store *repository.MemoryStore
	links *LinkRegistry
	hub   *Hub
	dist  *Distributor
}

func newDistributorFixture() *distributorFixture {
	clock := utils.NewFakeClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	f := &distributorFixture{
		clock: clock,
		store: repository.NewMemoryStore(clock),
		links: NewLinkRegistry(),
		hub:   NewHub(16),
	}
	f.dist = NewDistributor(f.store, f.links, f.hub, wire.MsgpackCodec{}, clock, nil)
	return f
}

func (f *distributorFixture) watch(destination string) *Subscriber {
	sub := f.hub.NewSubscriber()
	f.hub.Subscribe(sub, wire.ConfigTopic(destination))
	return sub
}

func drainSnapshots(t *testing.T, sub *Subscriber) []domain.ConfigSnapshot {
	t.Helper()
	var out []domain.ConfigSnapshot
	for {
		select {
		case raw := <-sub.C():
			frame, err := wire.ParseFrame(raw)
			require.NoError(t, err)
			var snap domain.ConfigSnapshot
			require.NoError(t, wire.DecodePayload(frame.Payload, &snap))
			out = append(out, snap)
		default:
			return out
		}
	}
}

func TestDistributor_OnePublishPerMutation(t *testing.T) {
	ctx := context.Background()
	f := newDistributorFixture()
	sub := f.watch("S1")

	created, err := f.dist.Create(ctx, domain.Link{SourceAccount: "M1", DestinationAccount: "S1", Enabled: true, LotMultiplier: 1})
	require.NoError(t, err)
	assert.Equal(t, "M1->S1", created.LinkID)
	assert.Equal(t, domain.DefaultMaxSignalDelayMs, created.MaxSignalDelayMs)

	disabled, err := f.dist.SetEnabled(ctx, created.LinkID, false)
	require.NoError(t, err)

	update := disabled
	update.LotMultiplier = 0.5
	update.ReverseTrade = true
	updated, err := f.dist.Update(ctx, update)
	require.NoError(t, err)

	snaps := drainSnapshots(t, sub)
	require.Len(t, snaps, 3)
	assert.Equal(t, created.ConfigVersion, snaps[0].Version())
	assert.Equal(t, disabled.ConfigVersion, snaps[1].Version())
	assert.False(t, snaps[1].Link.Enabled)
	assert.Equal(t, updated.ConfigVersion, snaps[2].Version())
	assert.Equal(t, 0.5, snaps[2].Link.LotMultiplier)

	assert.Less(t, snaps[0].Version(), snaps[1].Version())
	assert.Less(t, snaps[1].Version(), snaps[2].Version())

	inRegistry, ok := f.links.Get("M1->S1")
	require.True(t, ok)
	assert.Equal(t, updated.ConfigVersion, inRegistry.ConfigVersion)
}

func TestDistributor_PersistsWithoutSubscribers(t *testing.T) {
	ctx := context.Background()
	f := newDistributorFixture()

	_, err := f.dist.Create(ctx, domain.Link{SourceAccount: "M1", DestinationAccount: "S1", Enabled: true})
	require.NoError(t, err)

	stored, err := f.store.Get(ctx, "M1->S1")
	require.NoError(t, err)
	assert.True(t, stored.Enabled)
}

func TestDistributor_DeletePublishesTombstone(t *testing.T) {
	ctx := context.Background()
	f := newDistributorFixture()

	created, err := f.dist.Create(ctx, domain.Link{SourceAccount: "M1", DestinationAccount: "S1", Enabled: true})
	require.NoError(t, err)

	sub := f.watch("S1")
	tomb, err := f.dist.Delete(ctx, created.LinkID)
	require.NoError(t, err)
	assert.Greater(t, tomb.ConfigVersion, created.ConfigVersion)

	snaps := drainSnapshots(t, sub)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].Deleted)
	assert.Equal(t, tomb.ConfigVersion, snaps[0].Version())

	_, ok := f.links.Get(created.LinkID)
	assert.False(t, ok)

	recreated, err := f.dist.Create(ctx, domain.Link{SourceAccount: "M1", DestinationAccount: "S1", Enabled: true})
	require.NoError(t, err)
	assert.Greater(t, recreated.ConfigVersion, tomb.ConfigVersion)
}

func TestDistributor_Errors(t *testing.T) {
	ctx := context.Background()
	f := newDistributorFixture()
	sub := f.watch("S1")

	_, err := f.dist.Create(ctx, domain.Link{SourceAccount: "M1", DestinationAccount: "M1"})
	assert.True(t, domain.IsValidationError(err))

	_, err = f.dist.SetEnabled(ctx, "missing", true)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	_, err = f.dist.Delete(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	created, err := f.dist.Create(ctx, domain.Link{SourceAccount: "M1", DestinationAccount: "S1"})
	require.NoError(t, err)
	_, err = f.dist.Create(ctx, domain.Link{SourceAccount: "M1", DestinationAccount: "S1"})
	assert.ErrorIs(t, err, repository.ErrLinkExists)

	moved := created
	moved.DestinationAccount = "S2"
	_, err = f.dist.Update(ctx, moved)
	assert.ErrorIs(t, err, ErrDestinationChange)

	// Sólo la creación exitosa publicó.
	assert.Len(t, drainSnapshots(t, sub), 1)
}

func TestDistributor_SourceChangeKeepsLinkID(t *testing.T) {
	ctx := context.Background()
	f := newDistributorFixture()

	created, err := f.dist.Create(ctx, domain.Link{SourceAccount: "M1", DestinationAccount: "S1", Enabled: true})
	require.NoError(t, err)

	change := created
	change.SourceAccount = "M2"
	updated, err := f.dist.Update(ctx, change)
	require.NoError(t, err)
	assert.Equal(t, created.LinkID, updated.LinkID)

	assert.Empty(t, f.links.BySource("M1"))
	require.Len(t, f.links.BySource("M2"), 1)
}

func TestDistributor_PublishCurrent(t *testing.T) {
	ctx := context.Background()
	f := newDistributorFixture()

	_, err := f.dist.Create(ctx, domain.Link{SourceAccount: "M1", DestinationAccount: "S1", Enabled: true})
	require.NoError(t, err)
	_, err = f.dist.Create(ctx, domain.Link{SourceAccount: "M2", DestinationAccount: "S1", Enabled: true})
	require.NoError(t, err)
	_, err = f.dist.Create(ctx, domain.Link{SourceAccount: "M1", DestinationAccount: "S2", Enabled: true})
	require.NoError(t, err)

	sub := f.watch("S1")
	assert.Equal(t, 2, f.dist.PublishCurrent(ctx, "S1"))

	snaps := drainSnapshots(t, sub)
	require.Len(t, snaps, 2)
	for _, s := range snaps {
		assert.Equal(t, "S1", s.Link.DestinationAccount)
		assert.False(t, s.Deleted)
	}
}

func TestDistributor_SnapshotNeverCarriesEquityRatio(t *testing.T) {
	ctx := context.Background()
	f := newDistributorFixture()

	sub := f.watch("S1")
	saved, err := f.dist.Create(ctx, domain.Link{
		SourceAccount:      "M1",
		DestinationAccount: "S1",
		Enabled:            true,
		LotCalculationMode: domain.LotModeMarginRatio,
		EquityRatio:        0.25,
	})
	require.NoError(t, err)
	assert.Zero(t, saved.EquityRatio)

	snaps := drainSnapshots(t, sub)
	require.Len(t, snaps, 1)
	assert.Zero(t, snaps[0].Link.EquityRatio)
	assert.Equal(t, domain.LotModeMarginRatio, snaps[0].Link.LotCalculationMode)
}

func TestDistributor_Load(t *testing.T) {
	ctx := context.Background()
	f := newDistributorFixture()
	_, err := f.store.Create(ctx, domain.Link{LinkID: "a", SourceAccount: "M1", DestinationAccount: "S1"})
	require.NoError(t, err)

	require.NoError(t, f.dist.Load(ctx))
	_, ok := f.links.Get("a")
	assert.True(t, ok)
}
