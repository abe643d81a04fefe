package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundVolume(t *testing.T) {
	tests := []struct {
		name   string
		volume float64
		factor float64
		want   float64
	}{
		{"half", 1.0, 0.5, 0.5},
		{"identity", 0.37, 1, 0.37},
		{"rounds half up", 0.25, 0.5, 0.13},
		{"float noise removed", 0.1, 3, 0.3},
		{"zero multiplier", 1.0, 0, 0},
		{"rounds to zero", 0.01, 0.1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RoundVolume(tt.volume, tt.factor))
		})
	}
}

func TestRoundVolume_MonotonicInMultiplier(t *testing.T) {
	for _, volume := range []float64{0, 0.01, 0.33, 1, 7.77} {
		prev := RoundVolume(volume, 0)
		for m := 0.0; m <= 5; m += 0.013 {
			cur := RoundVolume(volume, m)
			assert.GreaterOrEqual(t, cur, prev, "volume=%v multiplier=%v", volume, m)
			prev = cur
		}
	}
}

func TestIsZeroVolume(t *testing.T) {
	assert.True(t, IsZeroVolume(0))
	assert.True(t, IsZeroVolume(0.004))
	assert.False(t, IsZeroVolume(0.01))
}

func TestRestingOrderType(t *testing.T) {
	tests := []struct {
		name  string
		side  Side
		price float64
		bid   float64
		ask   float64
		want  OrderType
	}{
		{"buy below market", SideBuy, 1.1000, 1.1010, 1.1012, OrderBuyLimit},
		{"buy above market", SideBuy, 1.1000, 1.0980, 1.0982, OrderBuyStop},
		{"sell above market", SideSell, 1.1000, 1.0980, 1.0982, OrderSellLimit},
		{"sell below market", SideSell, 1.1000, 1.1010, 1.1012, OrderSellStop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RestingOrderType(tt.side, tt.price, tt.bid, tt.ask)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsPending())
		})
	}
}

func TestOrderTypeFor(t *testing.T) {
	assert.Equal(t, OrderBuy, OrderTypeFor(SideBuy, EntryMarket))
	assert.Equal(t, OrderSell, OrderTypeFor(SideSell, ""))
	assert.Equal(t, OrderSellLimit, OrderTypeFor(SideSell, EntryLimit))
	assert.Equal(t, OrderBuyStop, OrderTypeFor(SideBuy, EntryStop))
}

func TestEquityRatio(t *testing.T) {
	assert.Equal(t, 0.25, EquityRatio(2500, 10000))
	assert.Zero(t, EquityRatio(0, 10000))
	assert.Zero(t, EquityRatio(2500, 0))
	assert.Zero(t, EquityRatio(2500, -1))

	link := Link{LotCalculationMode: LotModeMarginRatio, LotMultiplier: 1}
	link.EquityRatio = EquityRatio(2500, 10000)
	assert.Equal(t, 0.25, ScaleVolume(1.0, link))

	link.EquityRatio = EquityRatio(2500, 0)
	assert.Equal(t, 1.0, ScaleVolume(1.0, link))
}
