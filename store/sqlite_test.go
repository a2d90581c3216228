package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndListTrades(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UTC()
	require.NoError(t, s.SaveTrade(TradeRow{
		ID: "t1", Time: now.Add(-time.Minute), Asset: "BTC-PERP-INTX", Side: "BUY",
		Size: 0.01, Entry: 50000, Exit: 51000, PnL: 9.4, PnLGross: 10, FeeCost: 0.5, FundingCost: 0.1,
		Reason: "take_profit",
	}))
	require.NoError(t, s.SaveTrade(TradeRow{
		ID: "t2", Time: now, Asset: "ETH-PERP-INTX", Side: "SELL",
		Size: 0.5, Entry: 3000, Exit: 3100, PnL: -50.6, PnLGross: -50, FeeCost: 0.5, FundingCost: 0.1,
		Reason: "stop",
	}))

	rows, err := s.RecentTrades(10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Newest first.
	assert.Equal(t, "t2", rows[0].ID)
	assert.Equal(t, "take_profit", rows[1].Reason)
	assert.InDelta(t, 9.4, rows[1].PnL, 1e-9)
}

func TestLiveTradeUpsertAndDelete(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveLiveTrade("lt1", []byte(`{"asset":"BTC-PERP-INTX"}`)))
	require.NoError(t, s.SaveLiveTrade("lt1", []byte(`{"asset":"BTC-PERP-INTX","size":0.02}`)))

	rows, err := s.LoadLiveTrades()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, string(rows[0].Payload), `"size":0.02`)

	require.NoError(t, s.DeleteLiveTrade("lt1"))
	rows, err = s.LoadLiveTrades()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEquityHistoryChronological(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveEquityPoint(EquityPoint{
			Time:   base.Add(time.Duration(i) * time.Minute),
			Equity: 10000 + float64(i),
		}))
	}

	points, err := s.LoadEquityHistory(3)
	require.NoError(t, err)
	require.Len(t, points, 3)
	// Newest three, oldest first.
	assert.InDelta(t, 10002, points[0].Equity, 1e-9)
	assert.InDelta(t, 10004, points[2].Equity, 1e-9)
	assert.True(t, points[0].Time.Before(points[1].Time))
}

func TestPortfolioStateRoundTrip(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.LoadPortfolioState()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SavePortfolioState(PortfolioState{
		Time: time.Now().UTC(), Total: 12000, Mode: "hybrid",
		Aggr: 1200, Safe: 10800, Reason: "rebalance",
	}))

	got, ok, err := s.LoadPortfolioState()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hybrid", got.Mode)
	assert.InDelta(t, 1200, got.Aggr, 1e-9)
}

func TestSaveEvent(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveEvent(EventRow{
		EventID: "e1", Time: time.Now().UTC(), EventType: "trade_opened",
		DecisionID: "d1", TradeID: "t1", Asset: "BTC-PERP-INTX",
		Payload: []byte(`{"entry":50000}`),
	}))
	// Duplicate event ids are rejected by the primary key.
	assert.Error(t, s.SaveEvent(EventRow{
		EventID: "e1", Time: time.Now().UTC(), EventType: "trade_opened",
	}))
}
