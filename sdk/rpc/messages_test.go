package rpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/echo/sdk/domain"
)

func TestStructConversion_Link(t *testing.T) {
	link := domain.Link{
		LinkID:             "M1->S1",
		SourceAccount:      "M1",
		DestinationAccount: "S1",
		Enabled:            true,
		LotCalculationMode: domain.LotModeMultiplier,
		LotMultiplier:      0.5,
		ReverseTrade:       true,
		SymbolMappings:     []domain.SymbolMapping{{SourceSymbol: "EURUSD", TargetSymbol: "EURUSD.m"}},
		Filters:            domain.Filters{BlockedMagicNumbers: []int64{42}},
		MaxSignalDelayMs:   5000,
		MaxRetries:         3,
		ConfigVersion:      7,
		UpdatedAt:          time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	s, err := ToStruct(link)
	require.NoError(t, err)
	assert.Equal(t, "M1->S1", s.Fields["link_id"].GetStringValue())
	assert.Equal(t, float64(7), s.Fields["config_version"].GetNumberValue())

	var got domain.Link
	require.NoError(t, FromStruct(s, &got))
	assert.Equal(t, link.LinkID, got.LinkID)
	assert.Equal(t, link.SymbolMappings, got.SymbolMappings)
	assert.Equal(t, link.Filters.BlockedMagicNumbers, got.Filters.BlockedMagicNumbers)
	assert.Equal(t, link.ConfigVersion, got.ConfigVersion)
	assert.True(t, link.UpdatedAt.Equal(got.UpdatedAt))
}

func TestStructConversion_LinkViewFlattensLink(t *testing.T) {
	view := LinkView{Link: domain.Link{LinkID: "M1->S1"}, Status: domain.LinkWaiting}
	s, err := ToStruct(view)
	require.NoError(t, err)
	assert.Equal(t, "M1->S1", s.Fields["link_id"].GetStringValue())
	assert.Equal(t, "waiting", s.Fields["status"].GetStringValue())
}

func TestFromStruct_Nil(t *testing.T) {
	var req RecentEventsRequest
	require.NoError(t, FromStruct(nil, &req))
	assert.Zero(t, req.Limit)
}
