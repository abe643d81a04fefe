package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosition_OpenEvent(t *testing.T) {
	opened := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	p := Position{OrderID: 100, Symbol: "EURUSD", Side: SideSell, Entry: EntryLimit, Volume: 0.5, OpenPrice: 1.2, OpenedAt: opened}

	ev := p.OpenEvent("M1", 10000)
	assert.Equal(t, EventOpen, ev.Kind)
	assert.Equal(t, "M1", ev.SourceAccount)
	assert.Equal(t, int64(100), ev.SourceOrderID)
	assert.Equal(t, opened, ev.OccurredAt)
	assert.Equal(t, 10000.0, ev.SourceEquity)
	require.NoError(t, ev.Validate())
}

func TestSyncValidate(t *testing.T) {
	valid := Position{OrderID: 1, Symbol: "EURUSD", Side: SideBuy, Volume: 1, OpenedAt: time.Now()}

	tests := []struct {
		name    string
		v       interface{ Validate() error }
		wantErr bool
	}{
		{"request ok", &SyncRequest{AccountID: "S1", SourceAccount: "M1"}, false},
		{"request without source", &SyncRequest{AccountID: "S1"}, true},
		{"request without account", &SyncRequest{SourceAccount: "M1"}, true},
		{"empty snapshot ok", &PositionSnapshot{SourceAccount: "M1"}, false},
		{"snapshot ok", &PositionSnapshot{SourceAccount: "M1", Positions: []Position{valid}}, false},
		{"snapshot without source", &PositionSnapshot{Positions: []Position{valid}}, true},
		{"position without symbol", &PositionSnapshot{SourceAccount: "M1", Positions: []Position{{OrderID: 1, Side: SideBuy, Volume: 1, OpenedAt: time.Now()}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
