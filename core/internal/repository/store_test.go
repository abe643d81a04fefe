package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/utils"
)

func sampleLink(src, dst string) domain.Link {
	l := domain.Link{
		SourceAccount:      src,
		DestinationAccount: dst,
		Enabled:            true,
		LotMultiplier:      0.5,
		ReverseTrade:       true,
		MaxRetries:         2,
		SymbolMappings:     []domain.SymbolMapping{{SourceSymbol: "EURUSD", TargetSymbol: "EURUSD.m"}},
	}
	l.ApplyDefaults()
	return l
}

// runStoreContract comportamiento común a todas las implementaciones de LinkStore.
func runStoreContract(t *testing.T, store LinkStore) {
	ctx := context.Background()

	created, err := store.Create(ctx, sampleLink("M1", "S1"))
	require.NoError(t, err)
	assert.Equal(t, "M1->S1", created.LinkID)
	assert.Positive(t, created.ConfigVersion)
	assert.False(t, created.UpdatedAt.IsZero())

	_, err = store.Create(ctx, sampleLink("M1", "S1"))
	assert.ErrorIs(t, err, ErrLinkExists)

	got, err := store.Get(ctx, created.LinkID)
	require.NoError(t, err)
	assert.Equal(t, created.SymbolMappings, got.SymbolMappings)
	assert.Equal(t, created.ConfigVersion, got.ConfigVersion)

	update := got
	update.LotMultiplier = 2
	updated, err := store.Update(ctx, update)
	require.NoError(t, err)
	assert.Greater(t, updated.ConfigVersion, created.ConfigVersion)
	assert.Equal(t, 2.0, updated.LotMultiplier)

	disabled, err := store.SetEnabled(ctx, created.LinkID, false)
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)
	assert.Greater(t, disabled.ConfigVersion, updated.ConfigVersion)
	assert.Equal(t, 2.0, disabled.LotMultiplier)

	_, err = store.Create(ctx, sampleLink("M1", "S2"))
	require.NoError(t, err)
	clash := sampleLink("M1", "S2")
	clash.LinkID = created.LinkID
	_, err = store.Update(ctx, clash)
	assert.ErrorIs(t, err, ErrLinkExists)

	links, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, links, 2)

	tombstone, err := store.Delete(ctx, created.LinkID)
	require.NoError(t, err)
	assert.Greater(t, tombstone.ConfigVersion, disabled.ConfigVersion)
	assert.Equal(t, "S1", tombstone.DestinationAccount)

	_, err = store.Get(ctx, created.LinkID)
	assert.ErrorIs(t, err, ErrLinkNotFound)
	_, err = store.Delete(ctx, created.LinkID)
	assert.ErrorIs(t, err, ErrLinkNotFound)
	_, err = store.SetEnabled(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrLinkNotFound)
	_, err = store.Update(ctx, sampleLink("X", "Y"))
	assert.ErrorIs(t, err, ErrLinkNotFound)

	recreated, err := store.Create(ctx, sampleLink("M1", "S1"))
	require.NoError(t, err)
	assert.Greater(t, recreated.ConfigVersion, tombstone.ConfigVersion)
}

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, NewMemoryStore(utils.NewFakeClock(time.Unix(1700000000, 0))))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	created, err := store.Create(ctx, sampleLink("M1", "S1"))
	require.NoError(t, err)
	created.SymbolMappings[0].TargetSymbol = "mutated"

	got, err := store.Get(ctx, created.LinkID)
	require.NoError(t, err)
	assert.Equal(t, "EURUSD.m", got.SymbolMappings[0].TargetSymbol)
}

func TestPostgresStore_Contract(t *testing.T) {
	dsn := os.Getenv("ECHO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ECHO_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	schema := "echo_test_" + time.Now().Format("150405")
	store, err := OpenPostgres(ctx, dsn, schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = store.db.ExecContext(ctx, `DROP SCHEMA IF EXISTS `+schema+` CASCADE`)
		_ = store.Close()
	})

	runStoreContract(t, store)
}
