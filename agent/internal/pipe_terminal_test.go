package internal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/ipc"
	"github.com/xKoRx/echo/sdk/utils"
)

// fakeEA se conecta al pipe y responde requests con handle.
func fakeEA(t *testing.T, config *ipc.PipeConfig, handle func(ipc.Message) ipc.Message) *ipc.LineWriter {
	t.Helper()
	conn, err := ipc.Dial(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	reader := ipc.NewLineReader(conn)
	writer := ipc.NewLineWriter(conn)
	go func() {
		for {
			req, err := reader.ReadMessage()
			if err != nil {
				return
			}
			resp := handle(req)
			resp.Type = ipc.TypeResponse
			resp.ID = req.ID
			if err := writer.WriteMessage(resp); err != nil {
				return
			}
		}
	}()
	return writer
}

func eaHandler(req ipc.Message) ipc.Message {
	switch req.Command {
	case cmdTradeAllowed:
		return ipc.Message{OK: true, Payload: json.RawMessage(`{"allowed":true}`)}
	case cmdPlaceOrder:
		var order OrderRequest
		if err := json.Unmarshal(req.Payload, &order); err != nil || order.Symbol != "EURUSD" {
			return ipc.Message{Error: "invalid symbol", Code: 4106}
		}
		return ipc.Message{OK: true, Payload: json.RawMessage(`{"order_id":"7001"}`)}
	case cmdCloseOrder:
		return ipc.Message{Error: "trade disabled", Code: 133}
	case cmdAccountInfo:
		return ipc.Message{OK: true, Payload: json.RawMessage(`{"balance":1000,"equity":990,"open_positions":2,"is_trade_allowed":true}`)}
	case cmdPositions:
		return ipc.Message{OK: true, Payload: json.RawMessage(`[{"order_id":100,"symbol":"EURUSD","side":"buy","volume":0.5,"open_price":1.1,"opened_at":"2024-05-01T09:00:00Z"}]`)}
	default:
		return ipc.Message{Error: "unknown command"}
	}
}

func newListeningPipe(t *testing.T) (*PipeTerminal, *ipc.PipeConfig) {
	t.Helper()
	config := ipc.DefaultPipeConfig("echo_test_" + utils.GenerateUUIDv7())
	config.Timeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	term := NewPipeTerminal(config, nil)
	require.NoError(t, term.Listen(ctx))
	t.Cleanup(func() {
		cancel()
		_ = term.Close()
	})
	return term, config
}

func TestPipeTerminal_NotConnected(t *testing.T) {
	term, _ := newListeningPipe(t)

	_, err := term.PlaceOrder(context.Background(), OrderRequest{Symbol: "EURUSD"})
	assert.Equal(t, domain.ErrConnectionLost, domain.CodeOf(err))
}

func TestPipeTerminal_Calls(t *testing.T) {
	term, config := newListeningPipe(t)
	fakeEA(t, config, eaHandler)

	ctx := context.Background()
	require.Eventually(t, func() bool {
		allowed, err := term.IsTradeAllowed(ctx)
		return err == nil && allowed
	}, 2*time.Second, 20*time.Millisecond)

	id, err := term.PlaceOrder(ctx, OrderRequest{Symbol: "EURUSD", Type: domain.OrderBuy, Volume: 0.1})
	require.NoError(t, err)
	assert.Equal(t, "7001", id)

	err = term.CloseOrder(ctx, id, 0)
	assert.Equal(t, domain.ErrTradeDisabled, domain.CodeOf(err))

	info, err := term.AccountInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 990.0, info.Equity)
	assert.Equal(t, 2, info.OpenPositions)

	positions, err := term.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(100), positions[0].OrderID)
	assert.Equal(t, domain.SideBuy, positions[0].Side)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), positions[0].OpenedAt)
}

func TestPipeTerminal_ForwardsTradeEvents(t *testing.T) {
	term, config := newListeningPipe(t)
	writer := fakeEA(t, config, eaHandler)

	require.Eventually(t, func() bool {
		_, err := term.IsTradeAllowed(context.Background())
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, writer.WriteMessage(ipc.Message{
		Type:    ipc.TypeEvent,
		Command: "quote_tick",
		Payload: json.RawMessage(`{"symbol":"EURUSD"}`),
	}))
	require.NoError(t, writer.WriteMessage(ipc.Message{
		Type:    ipc.TypeEvent,
		Command: eventTrade,
		Payload: json.RawMessage(`{"event_kind":"open","source_order_id":100,"symbol":"EURUSD","side":"buy","volume":1,"occurred_at":"2024-05-01T10:00:00Z"}`),
	}))

	select {
	case ev := <-term.TradeEvents():
		assert.Equal(t, domain.EventOpen, ev.Kind)
		assert.Equal(t, int64(100), ev.SourceOrderID)
		assert.Equal(t, domain.SideBuy, ev.Side)
	case <-time.After(2 * time.Second):
		t.Fatal("trade event not forwarded")
	}
}
