package internal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/echo/sdk/domain"
)

func TestPaperTerminal_MarketOrders(t *testing.T) {
	ctx := context.Background()
	term := NewPaperTerminal(10000)
	term.SetQuote("EURUSD", 1.1000, 1.1002)

	id, err := term.PlaceOrder(ctx, OrderRequest{Symbol: "EURUSD", Type: domain.OrderBuy, Volume: 1})
	require.NoError(t, err)

	orders, err := term.OpenOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 1.1002, orders[0].Price)

	require.NoError(t, term.CloseOrder(ctx, id, 0.4))
	orders, _ = term.OpenOrders(ctx)
	assert.Equal(t, 0.6, orders[0].Volume)

	require.NoError(t, term.CloseOrder(ctx, id, 0))
	orders, _ = term.OpenOrders(ctx)
	assert.Empty(t, orders)

	err = term.CloseOrder(ctx, id, 0)
	assert.Equal(t, domain.ErrNotFound, domain.CodeOf(err))
}

func TestPaperTerminal_PlaceOrderErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*PaperTerminal)
		req   OrderRequest
		want  domain.ErrorCode
	}{
		{
			name:  "trading disabled",
			setup: func(p *PaperTerminal) { p.SetTradeAllowed(false) },
			req:   OrderRequest{Symbol: "EURUSD", Type: domain.OrderBuy, Volume: 1},
			want:  domain.ErrTradeDisabled,
		},
		{
			name: "zero volume",
			req:  OrderRequest{Symbol: "EURUSD", Type: domain.OrderBuy, Volume: 0.001},
			want: domain.ErrInvalidVolume,
		},
		{
			name: "unknown symbol",
			req:  OrderRequest{Symbol: "XAUUSD", Type: domain.OrderBuy, Volume: 1},
			want: domain.ErrInvalidSymbol,
		},
		{
			name: "resting without price",
			req:  OrderRequest{Symbol: "EURUSD", Type: domain.OrderBuyLimit, Volume: 1},
			want: domain.ErrInvalidPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := NewPaperTerminal(0)
			term.SetQuote("EURUSD", 1.1000, 1.1002)
			if tt.setup != nil {
				tt.setup(term)
			}
			_, err := term.PlaceOrder(context.Background(), tt.req)
			assert.Equal(t, tt.want, domain.CodeOf(err))
		})
	}
}

func TestPaperTerminal_RestingOrderTriggers(t *testing.T) {
	ctx := context.Background()
	term := NewPaperTerminal(0)
	term.SetQuote("EURUSD", 1.1010, 1.1012)

	id, err := term.PlaceOrder(ctx, OrderRequest{Symbol: "EURUSD", Type: domain.OrderBuyLimit, Volume: 1, Price: 1.1000})
	require.NoError(t, err)

	info, err := term.AccountInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, info.OpenPositions)

	err = term.CloseOrder(ctx, id, 0)
	assert.Equal(t, domain.ErrNotFound, domain.CodeOf(err))

	term.SetQuote("EURUSD", 1.0998, 1.1000)

	orders, err := term.OpenOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderBuy, orders[0].Type)

	err = term.CancelOrder(ctx, id)
	assert.Equal(t, domain.ErrNotFound, domain.CodeOf(err))
}

func TestPaperTerminal_CancelAndModify(t *testing.T) {
	ctx := context.Background()
	term := NewPaperTerminal(0)
	term.SetQuote("EURUSD", 1.1010, 1.1012)

	id, err := term.PlaceOrder(ctx, OrderRequest{Symbol: "EURUSD", Type: domain.OrderSellLimit, Volume: 1, Price: 1.1050})
	require.NoError(t, err)

	require.NoError(t, term.ModifyOrder(ctx, id, 1.1100, 1.0900))
	orders, _ := term.OpenOrders(ctx)
	assert.Equal(t, 1.1100, orders[0].StopLoss)
	assert.Equal(t, 1.0900, orders[0].TakeProfit)

	require.NoError(t, term.CancelOrder(ctx, id))
	orders, _ = term.OpenOrders(ctx)
	assert.Empty(t, orders)
}
