package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/echo/sdk/domain"
)

func regLink(id, src, dst string, version int64) domain.Link {
	return domain.Link{LinkID: id, SourceAccount: src, DestinationAccount: dst, Enabled: true, ConfigVersion: version}
}

func TestLinkRegistry_IndexesBySource(t *testing.T) {
	r := NewLinkRegistry()
	r.Load([]domain.Link{
		regLink("b", "M1", "S2", 1),
		regLink("a", "M1", "S1", 2),
		regLink("c", "M2", "S1", 3),
	})

	fromM1 := r.BySource("M1")
	require.Len(t, fromM1, 2)
	assert.Equal(t, "a", fromM1[0].LinkID)
	assert.Equal(t, "b", fromM1[1].LinkID)

	toS1 := r.ByDestination("S1")
	require.Len(t, toS1, 2)
	assert.Equal(t, "a", toS1[0].LinkID)
	assert.Equal(t, "c", toS1[1].LinkID)

	assert.Empty(t, r.BySource("unknown"))
	assert.Len(t, r.All(), 3)
}

func TestLinkRegistry_PutMovesSourceIndex(t *testing.T) {
	r := NewLinkRegistry()
	r.Put(regLink("a", "M1", "S1", 1))
	r.Put(regLink("a", "M2", "S1", 2))

	assert.Empty(t, r.BySource("M1"))
	require.Len(t, r.BySource("M2"), 1)

	r.Put(regLink("a", "M3", "S1", 1))
	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "M2", got.SourceAccount, "older version ignored")
}

func TestLinkRegistry_Remove(t *testing.T) {
	r := NewLinkRegistry()
	r.Put(regLink("a", "M1", "S1", 1))
	r.Put(regLink("b", "M1", "S2", 1))

	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))

	_, ok := r.Get("a")
	assert.False(t, ok)
	require.Len(t, r.BySource("M1"), 1)
	assert.Equal(t, "b", r.BySource("M1")[0].LinkID)
}

func TestLinkRegistry_ReturnsCopies(t *testing.T) {
	r := NewLinkRegistry()
	link := regLink("a", "M1", "S1", 1)
	link.Filters.AllowedSymbols = []string{"EURUSD"}
	r.Put(link)

	got := r.BySource("M1")
	got[0].Filters.AllowedSymbols[0] = "XAUUSD"

	again, _ := r.Get("a")
	assert.Equal(t, "EURUSD", again.Filters.AllowedSymbols[0])
}
