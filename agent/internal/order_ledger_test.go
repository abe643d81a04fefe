package internal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/echo/sdk/domain"
)

func TestOrderLedger_ConfirmedAndPendingAreExclusive(t *testing.T) {
	ledger := newTestLedger(t)

	m := confirmedMapping(1.0)
	m.OrderType = domain.OrderBuyLimit
	require.NoError(t, ledger.PutPending(m))

	has, err := ledger.Has("M1", 100)
	require.NoError(t, err)
	assert.True(t, has)

	m.OrderType = domain.OrderBuy
	require.NoError(t, ledger.PutConfirmed(m))

	_, pending, err := ledger.Pending("M1", 100)
	require.NoError(t, err)
	assert.False(t, pending)

	got, confirmed, err := ledger.Confirmed("M1", 100)
	require.NoError(t, err)
	require.True(t, confirmed)
	assert.Equal(t, domain.OrderBuy, got.OrderType)
}

func TestOrderLedger_KeysIncludeSourceAccount(t *testing.T) {
	ledger := newTestLedger(t)
	require.NoError(t, ledger.PutConfirmed(confirmedMapping(1.0)))

	has, err := ledger.Has("M2", 100)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestOrderLedger_Promote(t *testing.T) {
	ledger := newTestLedger(t)

	m := confirmedMapping(0.3)
	m.OrderType = domain.OrderSellStop
	require.NoError(t, ledger.PutPending(m))
	require.NoError(t, ledger.Promote("M1", 100, domain.OrderSell))

	pending, err := ledger.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	got, ok, err := ledger.Confirmed("M1", 100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.OrderSell, got.OrderType)
	assert.Equal(t, 0.3, got.Volume)

	require.NoError(t, ledger.Promote("M1", 999, domain.OrderSell))
}

func TestOrderLedger_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	ledger, err := OpenOrderLedger(path)
	require.NoError(t, err)
	require.NoError(t, ledger.PutConfirmed(confirmedMapping(1.0)))
	require.NoError(t, ledger.SaveConfig(domain.ConfigSnapshot{
		Link:        copyLink(),
		PublishedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, ledger.Close())

	reopened, err := OpenOrderLedger(path)
	require.NoError(t, err)
	defer reopened.Close()

	m, ok, err := reopened.Confirmed("M1", 100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "D-1", m.DestinationOrderID)

	snaps, err := reopened.LoadConfigs()
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "M1->S1", snaps[0].Link.LinkID)
	assert.Equal(t, int64(1), snaps[0].Version())
}

func TestOrderLedger_SaveConfigRequiresLinkID(t *testing.T) {
	ledger := newTestLedger(t)
	assert.Error(t, ledger.SaveConfig(domain.ConfigSnapshot{}))
}
