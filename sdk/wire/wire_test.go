package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/echo/sdk/domain"
)

func TestParseFrame(t *testing.T) {
	t.Run("splits on first space", func(t *testing.T) {
		f, err := ParseFrame([]byte(`trade/M1/S1 {"comment":"a b c"}`))
		require.NoError(t, err)
		assert.Equal(t, "trade/M1/S1", f.Topic)
		assert.Equal(t, `{"comment":"a b c"}`, string(f.Payload))
	})

	t.Run("empty payload allowed", func(t *testing.T) {
		f, err := ParseFrame([]byte("subscribe "))
		require.NoError(t, err)
		assert.Equal(t, "subscribe", f.Topic)
		assert.Empty(t, f.Payload)
	})

	t.Run("missing separator", func(t *testing.T) {
		_, err := ParseFrame([]byte("heartbeat"))
		assert.ErrorIs(t, err, ErrMalformedFrame)
	})

	t.Run("missing topic", func(t *testing.T) {
		_, err := ParseFrame([]byte(" {}"))
		assert.ErrorIs(t, err, ErrMalformedFrame)
	})
}

func TestTopics(t *testing.T) {
	src, dst, ok := ParseTradeTopic(TradeTopic("M1", "S1"))
	require.True(t, ok)
	assert.Equal(t, "M1", src)
	assert.Equal(t, "S1", dst)

	_, _, ok = ParseTradeTopic("trade/M1")
	assert.False(t, ok)
	_, _, ok = ParseTradeTopic(ConfigTopic("S1"))
	assert.False(t, ok)

	assert.True(t, IsConfigTopic("config/S1"))
	assert.False(t, IsConfigTopic("config/"))
	assert.False(t, ValidTopic("bad topic"))

	assert.Equal(t, "sync/M1", SyncTopic("M1"))
	assert.Equal(t, "positions/S1", PositionsTopic("S1"))
	assert.True(t, IsSyncTopic(SyncTopic("M1")))
	assert.False(t, IsSyncTopic("sync/"))
	assert.True(t, IsPositionsTopic(PositionsTopic("S1")))
	assert.False(t, IsPositionsTopic(ConfigTopic("S1")))
}

func TestDecodePayload_AutoDetectsCodec(t *testing.T) {
	occurred := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ev := domain.TradeEvent{
		Kind:          domain.EventOpen,
		SourceAccount: "M1",
		SourceOrderID: 100,
		Symbol:        "EURUSD",
		Side:          domain.SideBuy,
		Volume:        1,
		OpenPrice:     1.1,
		OccurredAt:    occurred,
	}

	for _, codec := range []Codec{JSONCodec{}, MsgpackCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			raw, err := EncodeFrame(codec, TopicTrade, ev)
			require.NoError(t, err)

			frame, err := ParseFrame(raw)
			require.NoError(t, err)
			assert.Equal(t, TopicTrade, frame.Topic)

			detected, ok := DetectCodec(frame.Payload)
			require.True(t, ok)
			assert.Equal(t, codec.Name(), detected.Name())

			var got domain.TradeEvent
			require.NoError(t, DecodePayload(frame.Payload, &got))
			assert.Equal(t, ev.SourceOrderID, got.SourceOrderID)
			assert.Equal(t, ev.Symbol, got.Symbol)
			assert.Equal(t, ev.Side, got.Side)
			assert.True(t, occurred.Equal(got.OccurredAt))
		})
	}
}

func TestDecodePayload_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"unknown encoding", []byte("hello")},
		{"broken json", []byte(`{"account_id":`)},
		{"missing required field", []byte(`{"role":"source"}`)},
		{"empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hb domain.Heartbeat
			err := DecodePayload(tt.payload, &hb)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestCodecByName(t *testing.T) {
	c, err := CodecByName("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	_, err = CodecByName("xml")
	assert.Error(t, err)
}

func TestControlFrame(t *testing.T) {
	f, err := ParseFrame(ControlFrame(ControlSubscribe, TradeTopic("M1", "S1")))
	require.NoError(t, err)
	assert.Equal(t, ControlSubscribe, f.Topic)
	assert.Equal(t, "trade/M1/S1", string(f.Payload))
}
